package gateway

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/avelinc/edgegate/internal/store"
)

// AdminPasswordHeader carries the shared admin secret.
const AdminPasswordHeader = "X-Admin-Password"

type ctxKey string

// RequestIDKey is the context key for request IDs.
const RequestIDKey ctxKey = "request_id"

// RequestIDMiddleware assigns each request an ID (honoring an inbound
// X-Request-ID) and binds it into the request's zerolog context.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			requestID := request.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := context.WithValue(request.Context(), RequestIDKey, requestID)
			logger := log.With().Str("request_id", requestID).Logger()
			ctx = logger.WithContext(ctx)

			writer.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// responseWriter captures the status code for access logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.statusCode = http.StatusOK
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}

// Flush keeps streaming responses streaming through the wrapper.
func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingMiddleware logs each request with method, path, status, and
// duration. Severity follows the status class.
func LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: writer, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, request)

			logger := zerolog.Ctx(request.Context()).With().
				Str("method", request.Method).
				Str("path", request.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Logger()

			switch {
			case wrapped.statusCode >= 500:
				logger.Error().Msg("request completed")
			case wrapped.statusCode >= 400:
				logger.Warn().Msg("request completed")
			default:
				logger.Info().Msg("request completed")
			}
		})
	}
}

// AdminAuthMiddleware validates the X-Admin-Password header against the
// credential in the current snapshot, so a rotation takes effect for the
// very next request. Hash-then-compare keeps the comparison constant-time
// and independent of the secret length. Failure has no side effects and
// reveals nothing about rule existence.
func AdminAuthMiddleware(st *store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			provided := request.Header.Get(AdminPasswordHeader)
			if provided == "" {
				failAuth(writer, request, "missing "+AdminPasswordHeader+" header")
				return
			}

			providedHash := sha256.Sum256([]byte(provided))
			expectedHash := st.Current().SecretHash()

			if subtle.ConstantTimeCompare(providedHash[:], expectedHash[:]) != 1 {
				failAuth(writer, request, "invalid admin password")
				return
			}

			zerolog.Ctx(request.Context()).Debug().Msg("admin authentication succeeded")
			next.ServeHTTP(writer, request)
		})
	}
}

func failAuth(writer http.ResponseWriter, request *http.Request, reason string) {
	zerolog.Ctx(request.Context()).Warn().Msg("admin authentication failed: " + reason)
	WriteError(writer, http.StatusUnauthorized, errTypeAuth, reason)
}

package gateway

import (
	"net/http"

	"github.com/avelinc/edgegate/internal/store"
)

// SetupRoutes assembles the single-port handler:
//   - GET  /admin/routes.json  - persisted document verbatim (auth)
//   - POST /admin/routes.json  - full table replace (auth)
//   - POST /admin/password     - credential rotation (old password is the auth)
//   - GET  /health             - liveness, no auth
//   - everything else          - routed and proxied per the current table
//
// Middleware order: RequestID first so every later log line carries the ID,
// then Logging, then per-route auth.
func SetupRoutes(st *store.Store) http.Handler {
	mux := http.NewServeMux()

	admin := NewAdminHandler(st)
	authed := AdminAuthMiddleware(st)

	mux.Handle("GET /admin/routes.json", authed(http.HandlerFunc(admin.GetRoutes)))
	mux.Handle("POST /admin/routes.json", authed(http.HandlerFunc(admin.PostRoutes)))
	// Rotation authenticates with the old password in the body, not the header.
	mux.Handle("POST /admin/password", http.HandlerFunc(admin.PostPassword))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // Health check write error is non-critical
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/", NewGateway(st))

	var handler http.Handler = mux
	handler = LoggingMiddleware()(handler)
	handler = RequestIDMiddleware()(handler)
	return handler
}

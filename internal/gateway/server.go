package gateway

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Server wraps http.Server with edgegate's timeout policy.
type Server struct {
	httpServer *http.Server
	addr       string
}

// NewServer creates the listener. Timeout rationale:
//   - ReadHeaderTimeout: 10s - protect against slowloris clients
//   - WriteTimeout: 0 - the terminal service and chat bridge hold
//     streaming responses open indefinitely
//   - IdleTimeout: 120s - reasonable keep-alive
//
// If enableHTTP2 is true, cleartext HTTP/2 (h2c) is enabled for backends
// and clients that multiplex.
func NewServer(addr string, handler http.Handler, enableHTTP2 bool) *Server {
	finalHandler := handler
	if enableHTTP2 {
		h2s := &http2.Server{}
		finalHandler = h2c.NewHandler(handler, h2s)
	}

	return &Server{
		addr: addr,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           finalHandler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ListenAndServe starts the server (blocks). A bind failure here is the
// one error that is fatal to the process.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, letting in-flight requests drain.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

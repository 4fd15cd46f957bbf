package httpserver

import (
	"context"
	"log"
	"net/http"

	"drift/internal/updater"
)

// HTTPServer exposes the update command surface to a host UI over HTTP,
// plus a WebSocket stream of broadcast events.
type HTTPServer struct {
	mux     *http.ServeMux
	server  *http.Server
	orch    *updater.Orchestrator
	version string
}

// NewHTTPServer creates a server bound to one orchestrator instance.
func NewHTTPServer(orch *updater.Orchestrator, version string) *HTTPServer {
	s := &HTTPServer{
		mux:     http.NewServeMux(),
		orch:    orch,
		version: version,
	}
	s.registerRoutes()
	return s
}

// registerRoutes sets up all HTTP routes with middleware
func (s *HTTPServer) registerRoutes() {
	s.mux.HandleFunc("/health", loggingMiddleware(s.handleHealth))
	s.mux.HandleFunc("/state", loggingMiddleware(s.handleState))
	s.mux.HandleFunc("/check", loggingMiddleware(s.handleCheck))
	s.mux.HandleFunc("/download", loggingMiddleware(s.handleDownload))
	s.mux.HandleFunc("/install", loggingMiddleware(s.handleInstall))
	s.mux.HandleFunc("/focus", loggingMiddleware(s.handleFocus))
	s.mux.HandleFunc("/config/feed", loggingMiddleware(s.handleFeedConfig))
	s.mux.HandleFunc("/config/channel", loggingMiddleware(s.handleChannel))
	s.mux.HandleFunc("/ws", loggingMiddleware(s.handleWebSocket))
}

// Handler returns the underlying handler, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address
func (s *HTTPServer) ListenAndServe(addr string) error {
	log.Printf("[HTTP] Starting server on %s", addr)
	s.server = &http.Server{Addr: addr, Handler: s.mux}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

package web

import (
	"context"
	"net/http"
	"time"

	"github.com/cjeanneret/StarGo/internal/debug"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer creates a server listening on addr.
func NewServer(addr string, handlers *Handlers) *Server {
	return &Server{
		addr:     addr,
		handlers: handlers,
	}
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", s.handlers.HandleStatus)
	mux.HandleFunc("POST /slew", s.handlers.HandleSlew)
	mux.HandleFunc("POST /goto", s.handlers.HandleGoto)
	mux.HandleFunc("POST /goto/degrees", s.handlers.HandleGotoDegrees)
	mux.HandleFunc("POST /stop", s.handlers.HandleStop)
	mux.HandleFunc("POST /shoot", s.handlers.HandleShoot)
	mux.HandleFunc("POST /mosaic", s.handlers.HandleMosaic)
	mux.HandleFunc("GET /log/stream", s.handlers.HandleLogStream)

	return mux
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
// A running mosaic is cancelled and has exited by the time Run returns, so the
// caller may use the controller again.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		debug.Info("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	var err error
	select {
	case err = <-errCh:
		if err == http.ErrServerClosed {
			err = nil
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
	}
	// No handler can start a mosaic once the listener is closed.
	if done := s.handlers.cancelRunningMosaic(); done != nil {
		<-done
	}
	return err
}

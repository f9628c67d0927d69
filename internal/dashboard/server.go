package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"hedgedash/internal/interfaces"
	"hedgedash/internal/logger"
	"hedgedash/internal/metrics"
)

// Config holds server configuration
type Config struct {
	Listen       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the dashboard: one page with the hedge and holdings forms plus a
// small JSON API over the same two operations.
type Server struct {
	router  *mux.Router
	config  Config
	hedge   interfaces.HedgeCalculator
	nav     interfaces.NavExtractor
	metrics *metrics.Registry

	// one in-flight run per operation; a second submit gets 409
	hedgeBusy atomic.Bool
	navBusy   atomic.Bool
}

func New(config Config, hedge interfaces.HedgeCalculator, nav interfaces.NavExtractor, m *metrics.Registry) *Server {
	if m == nil {
		m = metrics.New()
	}
	s := &Server{
		router:  mux.NewRouter(),
		config:  config,
		hedge:   hedge,
		nav:     nav,
		metrics: m,
	}
	s.setupRoutes()
	return s
}

// Handler returns the full middleware chain around the router.
func (s *Server) Handler() http.Handler {
	return zstdMiddleware(s.router)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Dashboard listening", "addr", s.config.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info(shutdownCtx, "Dashboard shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// guard claims an operation slot; the returned release must be called.
func guard(flag *atomic.Bool) (release func(), ok bool) {
	if !flag.CompareAndSwap(false, true) {
		return nil, false
	}
	return func() { flag.Store(false) }, true
}

// Package httpapi exposes the parsing, review, analytics and vocabulary
// surfaces over JSON for the dashboard. Rendering lives elsewhere.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"janmat/internal/bootstrap/logging"
	"janmat/internal/errs"
	"janmat/internal/usecase/geoquery"
	"janmat/internal/usecase/learning"
	"janmat/internal/usecase/parsing"
	"janmat/internal/usecase/vocabadmin"
)

type Server struct {
	parser   *parsing.Service
	reviews  *learning.Service
	queries  *geoquery.Service
	vocab    *vocabadmin.Service
	addr     string
	shutdown time.Duration
}

type Options struct {
	Addr string
}

func NewServer(
	parser *parsing.Service,
	reviews *learning.Service,
	queries *geoquery.Service,
	vocab *vocabadmin.Service,
	opts Options,
) *Server {
	addr := opts.Addr
	if addr == "" {
		addr = ":8085"
	}
	return &Server{
		parser:   parser,
		reviews:  reviews,
		queries:  queries,
		vocab:    vocab,
		addr:     addr,
		shutdown: 10 * time.Second,
	}
}

// Router builds the chi mux. Exposed separately so handler tests can mount
// it on httptest without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/parse", s.handleParse)
		r.Post("/corrections", s.handleCorrection)
		r.Get("/analytics/summary", s.handleSummary)
		r.Get("/analytics/districts/{district}", s.handleDistrict)
		r.Get("/vocab/pending", s.handlePending)
	})

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then drains with a
// shutdown grace period.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "httpapi.server"))

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
		BaseContext: func(net.Listener) context.Context {
			return logCtx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(logCtx, "http server listening", slog.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errs.Wrap(err, "shutdown http server")
		}
		logging.Info(logCtx, "http server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.Wrap(err, "serve http")
	}
}

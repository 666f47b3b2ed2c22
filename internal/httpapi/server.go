// Package httpapi exposes the RAG service as a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"docrag/internal/domain"
	"docrag/internal/service"
)

// Service is the subset of the RAG service served over HTTP.
type Service interface {
	IngestUpload(ctx context.Context, data []byte, typeTag string) (int, error)
	IngestText(ctx context.Context, text, source string) (int, error)
	IngestPage(ctx context.Context, rawURL string) (int, error)
	CrawlSite(ctx context.Context, rawURL string, maxPages int) (domain.CrawlReport, error)
	Ask(ctx context.Context, question string, k int) (domain.Answer, error)
	Stats() service.Stats
}

// Config bounds request handling.
type Config struct {
	// MaxUploadBytes caps request bodies. Default 20 MiB.
	MaxUploadBytes int64
}

// Server routes API requests to a Service.
type Server struct {
	svc       Service
	log       *slog.Logger
	maxUpload int64
	router    chi.Router
}

// New builds the router.
func New(svc Service, cfg Config, logger *slog.Logger) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, log: logger.With("component", "http"), maxUpload: cfg.MaxUploadBytes}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, &domain.Error{Kind: domain.KindNotFound, Msg: "no route for " + r.Method + " " + r.URL.Path})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Group(func(r chi.Router) {
			r.Use(s.limitBody)
			r.Post("/upload", s.handleUpload)
			r.Post("/text", s.handleText)
			r.Post("/website", s.handleWebsite)
			r.Post("/ask", s.handleAsk)
		})
	})
	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

package devbackend

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/boutique/internal/config"
	"go.uber.org/zap"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Server serves the product search API over a fixed catalog.
type Server struct {
	catalog *Catalog
	byID    map[string]*Product
	index   *keywordIndex
	config  *config.BackendConfig
	logger  *zap.Logger
	server  *http.Server
}

// NewServer indexes the catalog and returns a server ready to Start.
// A nil catalog uses SampleCatalog.
func NewServer(catalog *Catalog, cfg *config.BackendConfig, logger *zap.Logger) (*Server, error) {
	if catalog == nil {
		catalog = SampleCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	idx, err := newKeywordIndex(catalog)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Product, len(catalog.Products))
	for i := range catalog.Products {
		byID[catalog.Products[i].ID] = &catalog.Products[i]
	}
	return &Server{
		catalog: catalog,
		byID:    byID,
		index:   idx,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Handler returns the router with all API routes mounted under /api/v1.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/search/keyword", s.handleKeywordSearch)
		r.Post("/search/image/upload", s.handleImageUpload)
		r.Post("/search/image/url", s.handleImageURL)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting dev backend",
		zap.String("addr", addr),
		zap.Int("products", len(s.catalog.Products)))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server and releases the index.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if cerr := s.index.Close(); cerr != nil && err == nil {
		err = errors.Wrap(cerr, "failed to close index")
	}
	return err
}

// Close releases the index without touching the listener. Use it when the server was never started.
func (s *Server) Close() error {
	return s.index.Close()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

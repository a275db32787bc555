// Package server provides the HTTP API for ragbase.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/ragbase/internal/config"
	"github.com/hyperjump/ragbase/internal/indexer"
	"github.com/hyperjump/ragbase/internal/search"
	"github.com/hyperjump/ragbase/internal/storage"
	"github.com/hyperjump/ragbase/pkg/utils"
)

// Info describes the running configuration, reported by the status endpoint.
type Info struct {
	Version          string   `json:"version"`
	ChatModel        string   `json:"chat_model,omitempty"`
	EmbeddingModel   string   `json:"embedding_model,omitempty"`
	AnswerModel      string   `json:"answer_model,omitempty"`
	DatabasePath     string   `json:"database_path,omitempty"`
	StrictTaxonomy   bool     `json:"strict_taxonomy"`
	DefaultTopK      int      `json:"default_top_k,omitempty"`
	WatchDirectories []string `json:"watch_directories,omitempty"`
}

// Server is the HTTP server for the ragbase API.
type Server struct {
	engine  *search.Engine
	indexer *indexer.Indexer
	storage storage.Storage
	config  *config.ServerConfig
	info    Info
	logger  *zap.Logger
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithInfo sets the configuration summary returned by GET /api/v1/status.
func WithInfo(info Info) Option {
	return func(s *Server) { s.info = info }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	store storage.Storage,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		engine:  engine,
		indexer: idx,
		storage: store,
		config:  cfg,
		logger:  utils.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the API router.
func (s *Server) Routes() http.Handler {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/documents", s.handleAddDocument)
		r.Post("/documents/pdf", s.handleUploadPDF)
		r.Post("/ask", s.handleAsk)
		r.Get("/chunks", s.handleListChunks)
		r.Delete("/chunks", s.handleClearChunks)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Package server provides the HTTP API for the SOP assistant.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/gunter0128/sop-assistant/internal/answer"
	"github.com/gunter0128/sop-assistant/internal/config"
	"github.com/gunter0128/sop-assistant/internal/index"
)

// RebuildFunc runs a full index build and returns the fresh snapshot.
type RebuildFunc func(ctx context.Context) (*index.Snapshot, error)

// Server is the HTTP server for the assistant API.
type Server struct {
	assistant *answer.Assistant
	store     *index.Store
	rebuild   RebuildFunc
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. rebuild may be nil;
// the rebuild endpoint then reports it as unavailable.
func NewServer(
	assistant *answer.Assistant,
	store *index.Store,
	rebuild RebuildFunc,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		assistant: assistant,
		store:     store,
		rebuild:   rebuild,
		config:    cfg,
		logger:    logger,
	}
}

// Routes returns the chi router for the API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Post("/api/v1/ask", s.handleAsk)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Post("/api/v1/rebuild", s.handleRebuild)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

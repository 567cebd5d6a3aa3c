package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"automail/internal/classify"
	"automail/internal/config"
	"automail/internal/email"
	"automail/internal/workers"
)

// ProcessingController is the subset of the scheduler the API drives
type ProcessingController interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
	Status() *workers.Status
}

// MessageReader reads processed messages for the API
type MessageReader interface {
	Recent(limit int) ([]*email.Message, error)
	GetMessage(id string) (*email.Message, error)
}

// ClassifierService classifies ad-hoc content for the API
type ClassifierService interface {
	Classify(ctx context.Context, subject, content string) classify.Result
	HealthCheck(ctx context.Context) (*classify.HealthStatus, error)
}

// Server exposes the local status and control API
type Server struct {
	config     *config.Config
	scheduler  ProcessingController
	store      MessageReader
	classifier ClassifierService
	logger     *slog.Logger

	httpServer *http.Server

	mu              sync.Mutex
	lastManualStart *time.Time
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, scheduler ProcessingController, store MessageReader, classifier ClassifierService, logger *slog.Logger) *Server {
	return &Server{
		config:     cfg,
		scheduler:  scheduler,
		store:      store,
		classifier: classifier,
		logger:     logger,
	}
}

// Router builds the chi router with all API routes
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(RequestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(CORSMiddleware)
	r.Use(ContentTypeMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.HealthCheck)
		r.Get("/status", s.GetStatus)
		r.Get("/messages", s.GetMessages)
		r.Get("/messages/{id}", s.GetMessage)
		r.Post("/processing/start", s.StartProcessing)
		r.Post("/processing/stop", s.StopProcessing)
		r.Post("/classify", s.ClassifyMessage)
	})

	return r
}

// Start begins listening on the configured address
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.config.Server.Addr(),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.logger.Info("Starting API server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

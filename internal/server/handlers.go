package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"automail/internal/email"
	"automail/internal/ratelimit"
	"automail/internal/workers"
)

const (
	defaultMessagesLimit = 50
	maxMessagesLimit     = 500

	classifierHealthTimeout = 3 * time.Second
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string           `json:"status"`
	Classifier ClassifierHealth `json:"classifier"`
	Timestamp  string           `json:"timestamp"`
}

// ClassifierHealth summarizes classification service reachability
type ClassifierHealth struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Message     string `json:"message,omitempty"`
}

// MessagesResponse wraps a page of stored messages
type MessagesResponse struct {
	Messages []*email.Message `json:"messages"`
	Count    int              `json:"count"`
}

// StartResponse is returned by the processing start endpoint
type StartResponse struct {
	Status string `json:"status"`
	Forced bool   `json:"forced,omitempty"`
}

// ClassifyRequest is the ad-hoc classification request body
type ClassifyRequest struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// HealthCheck handles GET /api/health
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(r.Context(), classifierHealthTimeout)
	defer cancel()

	health, err := s.classifier.HealthCheck(ctx)
	if err != nil {
		response.Status = "degraded"
		response.Classifier = ClassifierHealth{
			Status:  "unreachable",
			Message: err.Error(),
		}
	} else {
		response.Classifier = ClassifierHealth{
			Status:      health.Status,
			ModelLoaded: health.ModelLoaded,
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// GetStatus handles GET /api/status
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

// GetMessages handles GET /api/messages
func (s *Server) GetMessages(w http.ResponseWriter, r *http.Request) {
	limit := defaultMessagesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
	}
	if limit > maxMessagesLimit {
		limit = maxMessagesLimit
	}

	messages, err := s.store.Recent(limit)
	if err != nil {
		s.logger.Error("Failed to load messages", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}
	if messages == nil {
		messages = []*email.Message{}
	}

	writeJSON(w, http.StatusOK, MessagesResponse{
		Messages: messages,
		Count:    len(messages),
	})
}

// GetMessage handles GET /api/messages/{id}
func (s *Server) GetMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	message, err := s.store.GetMessage(id)
	if err != nil {
		s.logger.Error("Failed to load message", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load message")
		return
	}
	if message == nil {
		writeError(w, http.StatusNotFound, "Message not found")
		return
	}

	writeJSON(w, http.StatusOK, message)
}

// StartProcessing handles POST /api/processing/start
func (s *Server) StartProcessing(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	s.mu.Lock()
	last := s.lastManualStart
	s.mu.Unlock()

	check := ratelimit.CheckStartRateLimit(s.config, last, force)
	if check.ShouldBlock {
		s.logger.Warn("Processing start rate limited",
			"remaining", check.RemainingTime,
			"reason", check.Reason)
		w.Header().Set("Retry-After", strconv.Itoa(int(check.RemainingTime.Seconds())+1))
		writeError(w, http.StatusTooManyRequests, "Processing was started recently, try again later")
		return
	}

	if err := s.scheduler.Start(r.Context()); err != nil {
		switch {
		case errors.Is(err, workers.ErrAlreadyRunning):
			writeError(w, http.StatusConflict, "Processing is already running")
		case errors.Is(err, workers.ErrNotAuthenticated):
			s.logger.Error("Processing start rejected", "error", err)
			writeError(w, http.StatusServiceUnavailable, "Mailbox authentication failed")
		default:
			s.logger.Error("Failed to start processing", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to start processing")
		}
		return
	}

	now := time.Now()
	s.mu.Lock()
	s.lastManualStart = &now
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, StartResponse{Status: "started", Forced: force})
}

// StopProcessing handles POST /api/processing/stop
func (s *Server) StopProcessing(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// ClassifyMessage handles POST /api/classify
func (s *Server) ClassifyMessage(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if req.Subject == "" && req.Content == "" {
		writeError(w, http.StatusBadRequest, "Subject or content is required")
		return
	}

	result := s.classifier.Classify(r.Context(), req.Subject, req.Content)

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

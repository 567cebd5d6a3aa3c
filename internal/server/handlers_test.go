package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"automail/internal/classify"
	"automail/internal/config"
	"automail/internal/email"
	"automail/internal/workers"
)

type fakeController struct {
	startErr error
	running  bool
	stopped  bool
	status   workers.Status
}

func (f *fakeController) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeController) Stop() {
	f.running = false
	f.stopped = true
}

func (f *fakeController) IsRunning() bool { return f.running }

func (f *fakeController) Status() *workers.Status { return &f.status }

type fakeReader struct {
	messages []*email.Message
	err      error
}

func (f *fakeReader) Recent(limit int) ([]*email.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.messages) {
		return f.messages[:limit], nil
	}
	return f.messages, nil
}

func (f *fakeReader) GetMessage(id string) (*email.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, msg := range f.messages {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, nil
}

type fakeClassifierService struct {
	result    classify.Result
	healthErr error
	health    *classify.HealthStatus
}

func (f *fakeClassifierService) Classify(ctx context.Context, subject, content string) classify.Result {
	return f.result
}

func (f *fakeClassifierService) HealthCheck(ctx context.Context) (*classify.HealthStatus, error) {
	if f.healthErr != nil {
		return nil, f.healthErr
	}
	if f.health != nil {
		return f.health, nil
	}
	return &classify.HealthStatus{Status: "healthy", ModelLoaded: true}, nil
}

type serverFixture struct {
	server     *Server
	controller *fakeController
	reader     *fakeReader
	classifier *fakeClassifierService
}

func newTestServer(t *testing.T) *serverFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.Processing.DisableRateLimit = true
	cfg.Server.Host = "localhost"
	cfg.Server.Port = "0"

	controller := &fakeController{status: workers.Status{State: "idle"}}
	reader := &fakeReader{}
	classifier := &fakeClassifierService{
		result: classify.Result{Label: classify.LabelWork, Confidence: 0.9},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := NewServer(cfg, controller, reader, classifier, logger)

	return &serverFixture{
		server:     server,
		controller: controller,
		reader:     reader,
		classifier: classifier,
	}
}

func (f *serverFixture) request(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, req)

	return w
}

func TestHealthCheckHealthy(t *testing.T) {
	fixture := newTestServer(t)

	w := fixture.request(t, "GET", "/api/health", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", response.Status)
	}
	if !response.Classifier.ModelLoaded {
		t.Error("Expected model_loaded to be true")
	}
}

func TestHealthCheckDegradedWhenClassifierUnreachable(t *testing.T) {
	fixture := newTestServer(t)
	fixture.classifier.healthErr = errors.New("connection refused")

	w := fixture.request(t, "GET", "/api/health", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Status != "degraded" {
		t.Errorf("Expected status 'degraded', got '%s'", response.Status)
	}
	if response.Classifier.Status != "unreachable" {
		t.Errorf("Expected classifier status 'unreachable', got '%s'", response.Classifier.Status)
	}
}

func TestGetStatus(t *testing.T) {
	fixture := newTestServer(t)
	fixture.controller.status = workers.Status{State: "monitoring", Running: true, StoredCount: 7}

	w := fixture.request(t, "GET", "/api/status", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var status workers.Status
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if status.State != "monitoring" {
		t.Errorf("Expected state 'monitoring', got '%s'", status.State)
	}
	if status.StoredCount != 7 {
		t.Errorf("Expected stored count 7, got %d", status.StoredCount)
	}
}

func TestGetMessages(t *testing.T) {
	fixture := newTestServer(t)
	fixture.reader.messages = []*email.Message{
		{ID: "m1", Subject: "first", Date: time.Now()},
		{ID: "m2", Subject: "second", Date: time.Now()},
	}

	w := fixture.request(t, "GET", "/api/messages", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response MessagesResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Count != 2 {
		t.Errorf("Expected count 2, got %d", response.Count)
	}
}

func TestGetMessagesLimit(t *testing.T) {
	fixture := newTestServer(t)
	fixture.reader.messages = []*email.Message{
		{ID: "m1"}, {ID: "m2"}, {ID: "m3"},
	}

	w := fixture.request(t, "GET", "/api/messages?limit=2", nil)

	var response MessagesResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Count != 2 {
		t.Errorf("Expected count 2, got %d", response.Count)
	}
}

func TestGetMessagesInvalidLimit(t *testing.T) {
	fixture := newTestServer(t)

	for _, limit := range []string{"abc", "-1", "0"} {
		w := fixture.request(t, "GET", "/api/messages?limit="+limit, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400 for limit=%s, got %d", limit, w.Code)
		}
	}
}

func TestGetMessagesEmpty(t *testing.T) {
	fixture := newTestServer(t)

	w := fixture.request(t, "GET", "/api/messages", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	// Must be an empty array, not null
	if !bytes.Contains(w.Body.Bytes(), []byte(`"messages":[]`)) {
		t.Errorf("Expected empty messages array, got %s", w.Body.String())
	}
}

func TestGetMessageByID(t *testing.T) {
	fixture := newTestServer(t)
	fixture.reader.messages = []*email.Message{{ID: "m1", Subject: "hello"}}

	w := fixture.request(t, "GET", "/api/messages/m1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var msg email.Message
	if err := json.NewDecoder(w.Body).Decode(&msg); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if msg.Subject != "hello" {
		t.Errorf("Expected subject 'hello', got '%s'", msg.Subject)
	}

	w = fixture.request(t, "GET", "/api/messages/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestStartProcessing(t *testing.T) {
	fixture := newTestServer(t)

	w := fixture.request(t, "POST", "/api/processing/start", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if !fixture.controller.running {
		t.Error("Expected controller to be started")
	}
}

func TestStartProcessingRateLimited(t *testing.T) {
	fixture := newTestServer(t)
	fixture.server.config.Processing.DisableRateLimit = false

	w := fixture.request(t, "POST", "/api/processing/start", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected first start to succeed, got %d", w.Code)
	}

	w = fixture.request(t, "POST", "/api/processing/start", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}

	// A forced start bypasses the rate limit
	w = fixture.request(t, "POST", "/api/processing/start?force=true", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected forced start to succeed, got %d", w.Code)
	}
}

func TestStartProcessingAlreadyRunning(t *testing.T) {
	fixture := newTestServer(t)
	fixture.controller.startErr = workers.ErrAlreadyRunning

	w := fixture.request(t, "POST", "/api/processing/start", nil)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}
}

func TestStartProcessingNotAuthenticated(t *testing.T) {
	fixture := newTestServer(t)
	fixture.controller.startErr = workers.ErrNotAuthenticated

	w := fixture.request(t, "POST", "/api/processing/start", nil)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestStopProcessing(t *testing.T) {
	fixture := newTestServer(t)
	fixture.controller.running = true

	w := fixture.request(t, "POST", "/api/processing/stop", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !fixture.controller.stopped {
		t.Error("Expected controller to be stopped")
	}
}

func TestClassifyMessage(t *testing.T) {
	fixture := newTestServer(t)

	body, _ := json.Marshal(ClassifyRequest{Subject: "meeting tomorrow", Content: "project update"})
	w := fixture.request(t, "POST", "/api/classify", body)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var result classify.Result
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.Label != classify.LabelWork {
		t.Errorf("Expected label '%s', got '%s'", classify.LabelWork, result.Label)
	}
}

func TestClassifyMessageBadRequest(t *testing.T) {
	fixture := newTestServer(t)

	w := fixture.request(t, "POST", "/api/classify", []byte("{not json"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid JSON, got %d", w.Code)
	}

	body, _ := json.Marshal(ClassifyRequest{})
	w = fixture.request(t, "POST", "/api/classify", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for empty request, got %d", w.Code)
	}
}

package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler states. Active catches up on the backlog; once the backlog is
// drained the scheduler drops to Monitoring and only polls for new mail.
const (
	StateIdle int32 = iota
	StateActive
	StateMonitoring
)

// stateName maps scheduler states to their API representation
func stateName(state int32) string {
	switch state {
	case StateActive:
		return "active"
	case StateMonitoring:
		return "monitoring"
	default:
		return "idle"
	}
}

// Scheduler drives the ingestion pipeline and label engine on a timer
type Scheduler struct {
	config   *SchedulerConfig
	pipeline *Pipeline
	labeler  *Labeler
	mailbox  MailboxClient
	store    MessageStore
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	state        atomic.Int32
	hasMore      atomic.Bool
	lastActivity atomic.Value // time.Time
	lastError    atomic.Value // string
}

// SchedulerConfig configures the processing loop
type SchedulerConfig struct {
	// CheckInterval is the pause between processing cycles
	CheckInterval time.Duration

	// IdleTimeout stops the scheduler after this long without new mail
	// while monitoring. Zero disables the auto-stop.
	IdleTimeout time.Duration

	// PendingLimit caps how many messages one cycle relabels
	PendingLimit int

	// CatchupQuery selects messages during backlog processing
	CatchupQuery string

	// MonitorQuery selects messages once the backlog is drained
	MonitorQuery string
}

// Status is a point-in-time snapshot of the scheduler
type Status struct {
	State       string `json:"state"`
	Running     bool   `json:"running"`
	HasMore     bool   `json:"has_more"`
	StoredCount int    `json:"stored_count"`
	LastFetch   string `json:"last_fetch,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// NewScheduler creates a processing scheduler
func NewScheduler(
	config *SchedulerConfig,
	pipeline *Pipeline,
	labeler *Labeler,
	mailbox MailboxClient,
	store MessageStore,
	logger *slog.Logger,
) *Scheduler {
	cfg := *config
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 10 * time.Second
	}
	if cfg.PendingLimit <= 0 {
		cfg.PendingLimit = 100
	}

	return &Scheduler{
		config:   &cfg,
		pipeline: pipeline,
		labeler:  labeler,
		mailbox:  mailbox,
		store:    store,
		logger:   logger,
	}
}

// Start begins background processing. It fails when processing is already
// running or the mailbox rejects our credentials.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	prev := s.done
	s.mu.Unlock()

	// A stopped loop may still be draining an in-flight cycle. Join it
	// before rearming so its shutdown cannot touch the new loop's state.
	if prev != nil {
		<-prev
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	if err := s.mailbox.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.running = true
	s.state.Store(StateActive)
	s.lastActivity.Store(time.Now())

	s.logger.Info("Starting processing scheduler",
		"check_interval", s.config.CheckInterval,
		"idle_timeout", s.config.IdleTimeout)

	go s.loop(runCtx, done)

	return nil
}

// Stop halts background processing. In-flight work finishes; subsequent
// calls are no-ops.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.logger.Info("Stopping processing scheduler")
	s.cancel()
	s.running = false
}

// Wait blocks until the processing loop has exited
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// IsRunning reports whether the scheduler is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot of the scheduler and store
func (s *Scheduler) Status() *Status {
	status := &Status{
		State:   stateName(s.state.Load()),
		Running: s.IsRunning(),
		HasMore: s.hasMore.Load(),
	}

	if count, err := s.store.Count(); err == nil {
		status.StoredCount = count
	}
	if lastFetch, err := s.store.GetState(StateKeyLastFetch); err == nil {
		status.LastFetch = lastFetch
	}
	if lastErr, ok := s.lastError.Load().(string); ok {
		status.LastError = lastErr
	}

	return status
}

// loop runs processing cycles until the context is cancelled. It closes
// the done channel it was armed with, never the scheduler's current one,
// so a restarted loop is unaffected by a predecessor still draining.
func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		s.state.Store(StateIdle)
		close(done)
		s.logger.Info("Processing loop stopped")
	}()

	s.runCycle(ctx)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle performs one ingest-then-label pass and updates the state machine
func (s *Scheduler) runCycle(ctx context.Context) {
	query := s.config.CatchupQuery
	if s.state.Load() == StateMonitoring {
		query = s.config.MonitorQuery
	}

	result, err := s.pipeline.RunCycle(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("Ingestion cycle failed", "error", err)
		s.lastError.Store(err.Error())
		return
	}

	pending, err := s.store.PendingLabel(s.config.PendingLimit)
	if err != nil {
		s.logger.Error("Failed to load pending messages", "error", err)
		s.lastError.Store(err.Error())
		return
	}

	report := s.labeler.Apply(ctx, pending)
	if len(report.Errors) > 0 {
		s.logger.Warn("Some label applications failed",
			"applied", report.Applied,
			"failed", len(report.Errors))
	}

	s.hasMore.Store(result.HasMore)
	if result.Processed > 0 {
		s.lastActivity.Store(time.Now())
	}

	if result.HasMore {
		s.state.Store(StateActive)
	} else {
		s.state.Store(StateMonitoring)
	}

	s.maybeAutoStop(result.Processed)
}

// maybeAutoStop shuts the loop down after a long stretch without new mail
func (s *Scheduler) maybeAutoStop(processed int) {
	if s.config.IdleTimeout <= 0 || processed > 0 {
		return
	}
	if s.state.Load() != StateMonitoring {
		return
	}

	lastActivity, ok := s.lastActivity.Load().(time.Time)
	if !ok {
		return
	}

	if time.Since(lastActivity) > s.config.IdleTimeout {
		s.logger.Info("No new messages, stopping automatically",
			"idle_timeout", s.config.IdleTimeout)
		s.Stop()
	}
}

package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"automail/internal/classify"
	"automail/internal/email"
)

// StateKeyLastFetch is the store key recording the last successful cycle
const StateKeyLastFetch = "last_fetch"

// Pipeline ingests, classifies, and persists mailbox messages
type Pipeline struct {
	config     *PipelineConfig
	mailbox    MailboxClient
	classifier Classifier
	store      MessageStore
	logger     *slog.Logger
	metrics    *PipelineMetrics
}

// PipelineConfig configures one ingestion cycle
type PipelineConfig struct {
	// MaxPerCycle caps how many messages one cycle fully processes
	MaxPerCycle int

	// MaxStored caps the message store; the newest messages are kept
	MaxStored int

	// DetailConcurrency bounds concurrent detail fetches
	DetailConcurrency int

	// FetchDelay is the pause between detail-fetch waves
	FetchDelay time.Duration

	// ContentMaxBytes truncates message bodies before storage
	ContentMaxBytes int
}

// PipelineMetrics tracks ingestion statistics
type PipelineMetrics struct {
	TotalCycles       atomic.Int64
	ListedMessages    atomic.Int64
	ProcessedMessages atomic.Int64
	SkippedMessages   atomic.Int64
	FallbackResults   atomic.Int64
	LastRun           atomic.Value // time.Time
	LastError         atomic.Value // string
}

// CycleResult reports what one ingestion cycle accomplished
type CycleResult struct {
	Processed int
	HasMore   bool
}

// NewPipeline creates an ingestion pipeline
func NewPipeline(
	config *PipelineConfig,
	mailbox MailboxClient,
	classifier Classifier,
	store MessageStore,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		config:     config,
		mailbox:    mailbox,
		classifier: classifier,
		store:      store,
		logger:     logger,
		metrics:    &PipelineMetrics{},
	}
}

// GetMetrics returns the pipeline metrics
func (p *Pipeline) GetMetrics() *PipelineMetrics {
	return p.metrics
}

// RunCycle executes one ingestion cycle for the given query: list pages,
// drop already-seen ids, fetch details, classify, persist, trim. It stops
// at the per-cycle cap and reports whether more work remains.
func (p *Pipeline) RunCycle(ctx context.Context, query string) (*CycleResult, error) {
	startTime := time.Now()
	p.metrics.TotalCycles.Add(1)

	labels, err := p.mailbox.LabelMap(ctx)
	if err != nil {
		p.metrics.LastError.Store(err.Error())
		return nil, fmt.Errorf("failed to load label map: %w", err)
	}

	processed := 0
	hasMore := false
	pageToken := ""

	for {
		page, err := p.mailbox.ListMessageIDs(ctx, query, pageToken)
		if err != nil {
			p.metrics.LastError.Store(err.Error())
			// Progress persisted by earlier iterations is kept
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		p.metrics.ListedMessages.Add(int64(len(page.IDs)))

		fresh, err := p.store.FilterNew(page.IDs)
		if err != nil {
			p.metrics.LastError.Store(err.Error())
			return nil, fmt.Errorf("failed to filter seen messages: %w", err)
		}

		if remaining := p.config.MaxPerCycle - processed; len(fresh) > remaining {
			fresh = fresh[:remaining]
			hasMore = true
		}

		if len(fresh) > 0 {
			msgs := p.fetchDetails(ctx, fresh, labels)
			p.classifyMessages(ctx, msgs)

			if err := p.store.UpsertMessages(msgs); err != nil {
				p.metrics.LastError.Store(err.Error())
				return nil, fmt.Errorf("failed to persist messages: %w", err)
			}

			processed += len(msgs)
			p.metrics.ProcessedMessages.Add(int64(len(msgs)))
		}

		pageToken = page.NextPageToken
		if pageToken != "" {
			hasMore = true
		}
		if pageToken == "" || processed >= p.config.MaxPerCycle {
			break
		}
		hasMore = false
	}

	if _, err := p.store.TrimToCap(p.config.MaxStored); err != nil {
		p.logger.Warn("Failed to trim message store", "error", err)
	}

	if err := p.store.SetState(StateKeyLastFetch, time.Now().UTC().Format(time.RFC3339)); err != nil {
		p.logger.Warn("Failed to record last fetch time", "error", err)
	}

	p.metrics.LastRun.Store(time.Now())

	p.logger.Info("Ingestion cycle completed",
		"query", query,
		"processed", processed,
		"has_more", hasMore,
		"duration", time.Since(startTime))

	return &CycleResult{Processed: processed, HasMore: hasMore}, nil
}

// fetchDetails retrieves full messages in bounded concurrent waves.
// Messages that vanished or became inaccessible are skipped.
func (p *Pipeline) fetchDetails(ctx context.Context, ids []string, labels *email.LabelMap) []*email.Message {
	concurrency := p.config.DetailConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	var mu sync.Mutex
	var msgs []*email.Message

	for start := 0; start < len(ids); start += concurrency {
		end := start + concurrency
		if end > len(ids) {
			end = len(ids)
		}

		var wg sync.WaitGroup
		for _, id := range ids[start:end] {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()

				msg, err := p.mailbox.FetchMessage(ctx, id, labels)
				if err != nil {
					if errors.Is(err, email.ErrNotFound) || errors.Is(err, email.ErrPermissionDenied) {
						p.logger.Debug("Skipping inaccessible message", "message_id", id, "error", err)
					} else {
						p.logger.Warn("Failed to fetch message", "message_id", id, "error", err)
					}
					p.metrics.SkippedMessages.Add(1)
					return
				}

				msg.Content = email.TruncateContent(msg.Content, p.config.ContentMaxBytes)

				mu.Lock()
				msgs = append(msgs, msg)
				mu.Unlock()
			}(id)
		}
		wg.Wait()

		// Be gentle with the mailbox API between waves
		if end < len(ids) && p.config.FetchDelay > 0 {
			time.Sleep(p.config.FetchDelay)
		}
	}

	return msgs
}

// classifyMessages runs the batch classifier and merges results in place
func (p *Pipeline) classifyMessages(ctx context.Context, msgs []*email.Message) {
	if len(msgs) == 0 {
		return
	}

	inputs := make([]classify.Input, len(msgs))
	for i, msg := range msgs {
		inputs[i] = classify.Input{Subject: msg.Subject, Content: msg.Content}
	}

	results := p.classifier.BatchClassify(ctx, inputs)

	for i, result := range results {
		msgs[i].AILabel = result.Label
		msgs[i].AIConfidence = result.Confidence
		msgs[i].AIReasoning = result.Reasoning
		if result.Fallback {
			p.metrics.FallbackResults.Add(1)
		}
	}
}

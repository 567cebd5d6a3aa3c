package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync/atomic"
	"time"

	"automail/internal/classify"
	"automail/internal/email"
)

// builtinSpamLabelID is Gmail's system spam label; it is never created
const builtinSpamLabelID = "SPAM"

// inboxLabelID is removed whenever a destination label is applied
const inboxLabelID = "INBOX"

// skippedLabel marks messages that disappeared from the mailbox before
// they could be relabeled, so later passes do not retry them
const skippedLabel = "Skipped"

// urgentPattern flags messages that must land under Important regardless
// of the predicted category
var urgentPattern = regexp.MustCompile(`(?i)\b(urgent|important|asap|deadline|action required)\b`)

// Labeler applies final labels to classified messages
type Labeler struct {
	config  *LabelerConfig
	mailbox MailboxClient
	store   MessageStore
	logger  *slog.Logger
	metrics *LabelerMetrics
}

// LabelerConfig configures label decisions
type LabelerConfig struct {
	// ConfidenceThreshold routes low-confidence predictions to review
	ConfidenceThreshold float64

	// Prefix namespaces the labels this system manages
	Prefix string

	// ApplyDelay is the pause between label mutations
	ApplyDelay time.Duration
}

// LabelerMetrics tracks labeling statistics
type LabelerMetrics struct {
	Applied  atomic.Int64
	Failed   atomic.Int64
	Reviewed atomic.Int64
}

// LabelError records one failed label application
type LabelError struct {
	MessageID string
	Err       error
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("message %s: %v", e.MessageID, e.Err)
}

// Report summarizes one labeling pass
type Report struct {
	Applied int
	Skipped int
	Errors  []*LabelError
}

// NewLabeler creates a label engine
func NewLabeler(config *LabelerConfig, mailbox MailboxClient, store MessageStore, logger *slog.Logger) *Labeler {
	cfg := *config
	if cfg.Prefix == "" {
		cfg.Prefix = "Automail-"
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.6
	}

	return &Labeler{
		config:  &cfg,
		mailbox: mailbox,
		store:   store,
		logger:  logger,
		metrics: &LabelerMetrics{},
	}
}

// GetMetrics returns the labeler metrics
func (l *Labeler) GetMetrics() *LabelerMetrics {
	return l.metrics
}

// Apply relabels each classified message: the destination label is added
// and INBOX removed in a single mailbox call, so a failure leaves the
// message untouched rather than half-moved. Failures are collected per
// message and never abort the pass.
func (l *Labeler) Apply(ctx context.Context, msgs []*email.Message) *Report {
	report := &Report{}
	if len(msgs) == 0 {
		return report
	}

	labels, err := l.mailbox.LabelMap(ctx)
	if err != nil {
		l.logger.Error("Failed to load label map", "error", err)
		for _, msg := range msgs {
			report.Errors = append(report.Errors, &LabelError{MessageID: msg.ID, Err: err})
		}
		return report
	}

	for i, msg := range msgs {
		if msg.AILabel == "" || msg.IsLabeled() {
			report.Skipped++
			continue
		}

		finalLabel := l.decide(msg)

		labelID, err := l.resolveLabelID(ctx, labels, finalLabel)
		if err != nil {
			l.recordFailure(report, msg.ID, err)
			continue
		}

		if err := l.mailbox.ModifyLabels(ctx, msg.ID, []string{labelID}, []string{inboxLabelID}); err != nil {
			if errors.Is(err, email.ErrNotFound) || errors.Is(err, email.ErrPermissionDenied) {
				l.skipGone(msg, err)
				report.Skipped++
				continue
			}
			l.recordFailure(report, msg.ID, err)
			continue
		}

		now := time.Now()
		if err := l.store.MarkLabeled(msg.ID, finalLabel, now); err != nil {
			l.logger.Warn("Failed to record label state", "message_id", msg.ID, "error", err)
		}
		msg.AILabel = finalLabel
		msg.LabeledAt = now

		report.Applied++
		l.metrics.Applied.Add(1)
		if finalLabel == classify.LabelReview {
			l.metrics.Reviewed.Add(1)
		}

		l.logger.Debug("Applied label",
			"message_id", msg.ID,
			"label", finalLabel,
			"confidence", msg.AIConfidence)

		if i < len(msgs)-1 && l.config.ApplyDelay > 0 {
			time.Sleep(l.config.ApplyDelay)
		}
	}

	return report
}

// decide picks the final label: low confidence routes to review, an
// urgency signal overrides everything else.
func (l *Labeler) decide(msg *email.Message) string {
	label := msg.AILabel

	if msg.AIConfidence < l.config.ConfidenceThreshold {
		label = classify.LabelReview
	}

	if urgentPattern.MatchString(msg.Subject) || urgentPattern.MatchString(msg.Content) {
		label = classify.LabelImportant
	}

	return label
}

// DestinationName maps a category to the mailbox label it lands under
func (l *Labeler) DestinationName(category string) string {
	if category == classify.LabelSpam {
		return builtinSpamLabelID
	}
	return l.config.Prefix + category
}

// resolveLabelID finds the label id for a category, creating the label
// when missing. A failed create triggers one label-map refresh in case a
// concurrent writer created it first.
func (l *Labeler) resolveLabelID(ctx context.Context, labels *email.LabelMap, category string) (string, error) {
	if category == classify.LabelSpam {
		return builtinSpamLabelID, nil
	}

	name := l.DestinationName(category)
	if label, ok := labels.ByName(name); ok {
		return label.ID, nil
	}

	created, err := l.mailbox.CreateLabel(ctx, name)
	if err == nil {
		labels.Add(*created)
		return created.ID, nil
	}

	refreshed, refreshErr := l.mailbox.LabelMap(ctx)
	if refreshErr == nil {
		if label, ok := refreshed.ByName(name); ok {
			labels.Add(label)
			return label.ID, nil
		}
	}

	return "", fmt.Errorf("failed to resolve label %q: %w", name, err)
}

// skipGone retires a message that was deleted or became inaccessible
// between ingestion and labeling. Such messages are marked in the store
// so they never come back from the pending query.
func (l *Labeler) skipGone(msg *email.Message, cause error) {
	l.logger.Debug("Message no longer accessible, skipping",
		"message_id", msg.ID,
		"error", cause)

	now := time.Now()
	if err := l.store.MarkLabeled(msg.ID, skippedLabel, now); err != nil {
		l.logger.Warn("Failed to record skip", "message_id", msg.ID, "error", err)
	}
	msg.AILabel = skippedLabel
	msg.LabeledAt = now
}

// recordFailure logs and tallies a failed label application
func (l *Labeler) recordFailure(report *Report, messageID string, err error) {
	l.logger.Warn("Failed to apply label", "message_id", messageID, "error", err)
	report.Errors = append(report.Errors, &LabelError{MessageID: messageID, Err: err})
	l.metrics.Failed.Add(1)
}

package workers

import (
	"context"
	"errors"
	"time"

	"automail/internal/classify"
	"automail/internal/email"
)

var (
	// ErrAlreadyRunning is returned when processing is started twice
	ErrAlreadyRunning = errors.New("processing already running")

	// ErrNotAuthenticated is returned when the mailbox rejects our credentials
	ErrNotAuthenticated = errors.New("mailbox not authenticated")
)

// MailboxClient is the mailbox surface the workers depend on
type MailboxClient interface {
	ListMessageIDs(ctx context.Context, query, pageToken string) (*email.ListPage, error)
	FetchMessage(ctx context.Context, id string, labels *email.LabelMap) (*email.Message, error)
	LabelMap(ctx context.Context) (*email.LabelMap, error)
	CreateLabel(ctx context.Context, name string) (*email.Label, error)
	ModifyLabels(ctx context.Context, id string, add, remove []string) error
	HealthCheck(ctx context.Context) error
}

// Classifier assigns labels to message batches
type Classifier interface {
	BatchClassify(ctx context.Context, inputs []classify.Input) []classify.Result
}

// MessageStore persists ingested messages and scheduler state
type MessageStore interface {
	FilterNew(ids []string) ([]string, error)
	UpsertMessages(msgs []*email.Message) error
	TrimToCap(max int) (int, error)
	PendingLabel(limit int) ([]*email.Message, error)
	MarkLabeled(id, finalLabel string, at time.Time) error
	Count() (int, error)
	SetState(key, value string) error
	GetState(key string) (string, error)
}

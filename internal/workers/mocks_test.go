package workers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"automail/internal/classify"
	"automail/internal/email"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *email.Store {
	t.Helper()

	store, err := email.NewStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

type modifyCall struct {
	id     string
	add    []string
	remove []string
}

// fakeMailbox is a scriptable in-memory mailbox
type fakeMailbox struct {
	mu sync.Mutex

	labels        []email.Label
	refreshLabels []email.Label
	labelMapCalls int

	pages     map[string]*email.ListPage
	dates     map[string]time.Time
	subjects  map[string]string
	contents  map[string]string
	listErr   error
	fetchErr  map[string]error
	modifyErr map[string]error
	createErr error
	healthErr error

	modifyCalls []modifyCall
	created     []string
	fetched     []string
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{
		pages:     make(map[string]*email.ListPage),
		dates:     make(map[string]time.Time),
		subjects:  make(map[string]string),
		contents:  make(map[string]string),
		fetchErr:  make(map[string]error),
		modifyErr: make(map[string]error),
	}
}

func (f *fakeMailbox) ListMessageIDs(ctx context.Context, query, pageToken string) (*email.ListPage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if page, ok := f.pages[pageToken]; ok {
		return page, nil
	}
	return &email.ListPage{}, nil
}

func (f *fakeMailbox) FetchMessage(ctx context.Context, id string, labels *email.LabelMap) (*email.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fetchErr[id]; err != nil {
		return nil, err
	}
	f.fetched = append(f.fetched, id)

	subject := f.subjects[id]
	if subject == "" {
		subject = "subject " + id
	}

	date := f.dates[id]
	if date.IsZero() {
		date = time.Now()
	}

	return &email.Message{
		ID:       id,
		ThreadID: "thread-" + id,
		Subject:  subject,
		Content:  f.contents[id],
		Date:     date,
		Category: "Primary",
	}, nil
}

func (f *fakeMailbox) LabelMap(ctx context.Context) (*email.LabelMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.labelMapCalls++
	if f.refreshLabels != nil && f.labelMapCalls > 1 {
		return email.NewLabelMap(f.refreshLabels), nil
	}
	return email.NewLabelMap(f.labels), nil
}

func (f *fakeMailbox) CreateLabel(ctx context.Context, name string) (*email.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, f.createErr
	}

	label := email.Label{ID: fmt.Sprintf("Label_%d", len(f.labels)+1), Name: name}
	f.labels = append(f.labels, label)
	f.created = append(f.created, name)

	return &label, nil
}

func (f *fakeMailbox) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.modifyErr[id]; err != nil {
		return err
	}

	f.modifyCalls = append(f.modifyCalls, modifyCall{id: id, add: add, remove: remove})
	return nil
}

func (f *fakeMailbox) HealthCheck(ctx context.Context) error {
	return f.healthErr
}

func (f *fakeMailbox) modifyCallsFor(id string) []modifyCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var calls []modifyCall
	for _, call := range f.modifyCalls {
		if call.id == id {
			calls = append(calls, call)
		}
	}
	return calls
}

// fakeClassifier labels everything Work at 0.9 unless overridden
type fakeClassifier struct {
	mu       sync.Mutex
	classify func(input classify.Input) classify.Result
	batches  [][]classify.Input
}

func (f *fakeClassifier) BatchClassify(ctx context.Context, inputs []classify.Input) []classify.Result {
	f.mu.Lock()
	f.batches = append(f.batches, inputs)
	f.mu.Unlock()

	results := make([]classify.Result, len(inputs))
	for i, input := range inputs {
		if f.classify != nil {
			results[i] = f.classify(input)
		} else {
			results[i] = classify.Result{Label: classify.LabelWork, Confidence: 0.9}
		}
	}
	return results
}

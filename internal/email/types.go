package email

import (
	"strings"
	"time"
)

// Message represents a parsed mailbox message with classification state
type Message struct {
	ID           string    `json:"id"`
	ThreadID     string    `json:"thread_id"`
	Subject      string    `json:"subject"`
	Sender       string    `json:"sender"`
	SenderEmail  string    `json:"sender_email"`
	Recipient    string    `json:"recipient"`
	Date         time.Time `json:"date"`
	Snippet      string    `json:"snippet"`
	Content      string    `json:"content,omitempty"`
	Category     string    `json:"category"`
	LabelIDs     []string  `json:"label_ids,omitempty"`
	GmailLabels  []string  `json:"gmail_labels,omitempty"`
	AILabel      string    `json:"ai_label,omitempty"`
	AIConfidence float64   `json:"ai_confidence,omitempty"`
	AIReasoning  string    `json:"ai_reasoning,omitempty"`
	LabeledAt    time.Time `json:"labeled_at,omitempty"`
}

// IsLabeled reports whether the message has already been relabeled
func (m *Message) IsLabeled() bool {
	return !m.LabeledAt.IsZero()
}

// Label is a mailbox label
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListPage is one page of a message id listing
type ListPage struct {
	IDs           []string
	NextPageToken string
}

// LabelMap provides bidirectional label lookup. Name lookups are
// case-insensitive because Gmail treats label names that way.
type LabelMap struct {
	byName map[string]Label
	byID   map[string]Label
}

// NewLabelMap builds a map from a label listing
func NewLabelMap(labels []Label) *LabelMap {
	m := &LabelMap{
		byName: make(map[string]Label, len(labels)),
		byID:   make(map[string]Label, len(labels)),
	}
	for _, label := range labels {
		m.Add(label)
	}
	return m
}

// Add inserts or replaces a label
func (m *LabelMap) Add(label Label) {
	m.byName[strings.ToLower(label.Name)] = label
	m.byID[label.ID] = label
}

// ByName looks up a label by name, case-insensitively
func (m *LabelMap) ByName(name string) (Label, bool) {
	label, ok := m.byName[strings.ToLower(name)]
	return label, ok
}

// ByID looks up a label by id
func (m *LabelMap) ByID(id string) (Label, bool) {
	label, ok := m.byID[id]
	return label, ok
}

// Len returns the number of labels in the map
func (m *LabelMap) Len() int {
	return len(m.byID)
}

package email

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// schemaVersion gates the message table layout via PRAGMA user_version
const schemaVersion = 1

// Store persists processed messages and scheduler state in SQLite
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (and if necessary initializes) the message store
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=30000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates tables, rebuilding them when the stored schema
// version does not match
func (s *Store) initSchema() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version != 0 && version != schemaVersion {
		// Stored data is derived from the mailbox and safe to rebuild
		if _, err := s.db.Exec("DROP TABLE IF EXISTS messages; DROP TABLE IF EXISTS app_state"); err != nil {
			return fmt.Errorf("failed to drop outdated tables: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		thread_id TEXT,
		subject TEXT,
		sender TEXT,
		sender_email TEXT,
		recipient TEXT,
		date TIMESTAMP,
		snippet TEXT,
		content TEXT,
		category TEXT,
		gmail_labels TEXT,
		ai_label TEXT DEFAULT '',
		ai_confidence REAL DEFAULT 0,
		ai_reasoning TEXT DEFAULT '',
		labeled_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_date ON messages(date);
	CREATE INDEX IF NOT EXISTS idx_messages_ai_label ON messages(ai_label);
	CREATE INDEX IF NOT EXISTS idx_messages_labeled_at ON messages(labeled_at);

	CREATE TABLE IF NOT EXISTS app_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TRIGGER IF NOT EXISTS update_messages_updated_at
		AFTER UPDATE ON messages
	BEGIN
		UPDATE messages SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
	END;
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	return nil
}

// FilterNew returns the subset of ids not yet present in the store,
// preserving input order
func (s *Store) FilterNew(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	query := fmt.Sprintf("SELECT id FROM messages WHERE id IN (%s)", placeholders)

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing ids: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		existing[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	var fresh []string
	for _, id := range ids {
		if !existing[id] {
			fresh = append(fresh, id)
		}
	}

	return fresh, nil
}

// UpsertMessages inserts or updates messages in one transaction. A message
// that was already relabeled keeps its labeled_at timestamp.
func (s *Store) UpsertMessages(msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO messages (
			id, thread_id, subject, sender, sender_email, recipient,
			date, snippet, content, category, gmail_labels,
			ai_label, ai_confidence, ai_reasoning, labeled_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			thread_id = excluded.thread_id,
			subject = excluded.subject,
			sender = excluded.sender,
			sender_email = excluded.sender_email,
			recipient = excluded.recipient,
			date = excluded.date,
			snippet = excluded.snippet,
			content = excluded.content,
			category = excluded.category,
			gmail_labels = excluded.gmail_labels,
			ai_label = excluded.ai_label,
			ai_confidence = excluded.ai_confidence,
			ai_reasoning = excluded.ai_reasoning,
			labeled_at = COALESCE(messages.labeled_at, excluded.labeled_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, msg := range msgs {
		labelsJSON, err := json.Marshal(msg.GmailLabels)
		if err != nil {
			return fmt.Errorf("failed to marshal labels for %s: %w", msg.ID, err)
		}

		var labeledAt interface{}
		if !msg.LabeledAt.IsZero() {
			labeledAt = msg.LabeledAt
		}

		_, err = stmt.Exec(
			msg.ID,
			msg.ThreadID,
			msg.Subject,
			msg.Sender,
			msg.SenderEmail,
			msg.Recipient,
			msg.Date,
			msg.Snippet,
			msg.Content,
			msg.Category,
			string(labelsJSON),
			msg.AILabel,
			msg.AIConfidence,
			msg.AIReasoning,
			labeledAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert message %s: %w", msg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}

	return nil
}

// TrimToCap deletes the oldest messages until at most max remain,
// keeping the newest by original message date
func (s *Store) TrimToCap(max int) (int, error) {
	result, err := s.db.Exec(`
		DELETE FROM messages WHERE id NOT IN (
			SELECT id FROM messages ORDER BY date DESC, id LIMIT ?
		)
	`, max)
	if err != nil {
		return 0, fmt.Errorf("failed to trim messages: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(deleted), nil
}

// PendingLabel returns classified messages that have not been relabeled yet
func (s *Store) PendingLabel(limit int) ([]*Message, error) {
	rows, err := s.db.Query(`
		SELECT id, thread_id, subject, sender, sender_email, recipient,
			   date, snippet, content, category, gmail_labels,
			   ai_label, ai_confidence, ai_reasoning, labeled_at
		FROM messages
		WHERE ai_label != '' AND labeled_at IS NULL
		ORDER BY date DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// MarkLabeled records the final label applied to a message
func (s *Store) MarkLabeled(id, finalLabel string, at time.Time) error {
	_, err := s.db.Exec(
		"UPDATE messages SET ai_label = ?, labeled_at = ? WHERE id = ?",
		finalLabel, at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark message %s labeled: %w", id, err)
	}
	return nil
}

// Recent returns the newest stored messages
func (s *Store) Recent(limit int) ([]*Message, error) {
	rows, err := s.db.Query(`
		SELECT id, thread_id, subject, sender, sender_email, recipient,
			   date, snippet, content, category, gmail_labels,
			   ai_label, ai_confidence, ai_reasoning, labeled_at
		FROM messages
		ORDER BY date DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// Count returns the number of stored messages
func (s *Store) Count() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// GetMessage retrieves one stored message, or nil when absent
func (s *Store) GetMessage(id string) (*Message, error) {
	rows, err := s.db.Query(`
		SELECT id, thread_id, subject, sender, sender_email, recipient,
			   date, snippet, content, category, gmail_labels,
			   ai_label, ai_confidence, ai_reasoning, labeled_at
		FROM messages
		WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query message: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs[0], nil
}

// SetState stores a key-value state pair
func (s *Store) SetState(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO app_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set state %q: %w", key, err)
	}
	return nil
}

// GetState retrieves a state value, empty when unset
func (s *Store) GetState(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get state %q: %w", key, err)
	}
	return value, nil
}

// Cleanup removes messages older than the cutoff and reclaims space
func (s *Store) Cleanup(olderThan time.Time) error {
	result, err := s.db.Exec("DELETE FROM messages WHERE date < ?", olderThan)
	if err != nil {
		return fmt.Errorf("failed to cleanup old messages: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		if _, err := s.db.Exec("VACUUM"); err != nil {
			// VACUUM is an optimization, not a correctness requirement
			return nil
		}
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// scanMessages reads message rows into structs
func scanMessages(rows *sql.Rows) ([]*Message, error) {
	var msgs []*Message
	for rows.Next() {
		var msg Message
		var labelsJSON string
		var labeledAt sql.NullTime

		err := rows.Scan(
			&msg.ID,
			&msg.ThreadID,
			&msg.Subject,
			&msg.Sender,
			&msg.SenderEmail,
			&msg.Recipient,
			&msg.Date,
			&msg.Snippet,
			&msg.Content,
			&msg.Category,
			&labelsJSON,
			&msg.AILabel,
			&msg.AIConfidence,
			&msg.AIReasoning,
			&labeledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		if labelsJSON != "" && labelsJSON != "null" {
			if err := json.Unmarshal([]byte(labelsJSON), &msg.GmailLabels); err != nil {
				return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
			}
		}

		if labeledAt.Valid {
			msg.LabeledAt = labeledAt.Time
		}

		msgs = append(msgs, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return msgs, nil
}

// Package store persists conversation messages and workflow outcomes in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Message roles.
const (
	RoleUser      = "USER"
	RoleAssistant = "ASSISTANT"
)

// Message types.
const (
	TypeResult = "RESULT"
	TypeError  = "ERROR"
)

// Message is one entry of a project conversation.
type Message struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	RunID     string    `json:"runId,omitempty"`
	Role      string    `json:"role"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Fragment  *Fragment `json:"fragment,omitempty"`
}

// Fragment is the artifact attached to a RESULT message.
type Fragment struct {
	ID         string            `json:"id"`
	MessageID  string            `json:"messageId"`
	Title      string            `json:"title"`
	Files      map[string]string `json:"files"`
	SandboxURL string            `json:"sandboxUrl"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Outcome is the terminal record of one workflow run.
type Outcome struct {
	RunID      string
	ProjectID  string
	Type       string // TypeResult or TypeError
	Content    string
	Title      string
	Files      map[string]string
	SandboxURL string
}

// SQLiteStore stores messages and fragments in SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path.
func Open(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; concurrent runs queue here instead of failing
	// with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		run_id TEXT UNIQUE,
		role TEXT NOT NULL,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fragments (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		files TEXT NOT NULL,
		sandbox_url TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_messages_project ON messages(project_id, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// CreateMessage records a message that is not a workflow outcome, such as
// the user's prompt.
func (s *SQLiteStore) CreateMessage(ctx context.Context, projectID, role, content string) (*Message, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project id is required")
	}
	m := &Message{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Role:      role,
		Type:      TypeResult,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, project_id, run_id, role, type, content, created_at)
		VALUES (?, ?, NULL, ?, ?, ?, ?)
	`, m.ID, m.ProjectID, m.Role, m.Type, m.Content, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return m, nil
}

// RecentMessages returns up to n messages of a project, newest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, projectID string, n int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, COALESCE(run_id, ''), role, type, content, created_at
		FROM messages
		WHERE project_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, projectID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.RunID, &m.Role, &m.Type, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateOutcome commits the outcome of a run: an assistant message and, for
// RESULT outcomes, its fragment, in one transaction. Committing the same run
// again returns the record already stored.
func (s *SQLiteStore) CreateOutcome(ctx context.Context, o Outcome) (*Message, error) {
	if o.RunID == "" || o.ProjectID == "" {
		return nil, fmt.Errorf("run id and project id are required")
	}
	if o.Type != TypeResult && o.Type != TypeError {
		return nil, fmt.Errorf("invalid outcome type %q", o.Type)
	}

	if m, err := s.OutcomeByRun(ctx, o.RunID); err == nil {
		return m, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	m, err := s.insertOutcome(ctx, o)
	if isUniqueViolation(err) {
		return s.OutcomeByRun(ctx, o.RunID)
	}
	return m, err
}

func (s *SQLiteStore) insertOutcome(ctx context.Context, o Outcome) (*Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	m := &Message{
		ID:        uuid.NewString(),
		ProjectID: o.ProjectID,
		RunID:     o.RunID,
		Role:      RoleAssistant,
		Type:      o.Type,
		Content:   o.Content,
		CreatedAt: now,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, project_id, run_id, role, type, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.ProjectID, m.RunID, m.Role, m.Type, m.Content, m.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	if o.Type == TypeResult {
		files := o.Files
		if files == nil {
			files = map[string]string{}
		}
		filesJSON, err := json.Marshal(files)
		if err != nil {
			return nil, fmt.Errorf("failed to encode files: %w", err)
		}
		f := &Fragment{
			ID:         uuid.NewString(),
			MessageID:  m.ID,
			Title:      o.Title,
			Files:      files,
			SandboxURL: o.SandboxURL,
			CreatedAt:  now,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO fragments (id, message_id, title, files, sandbox_url, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, f.ID, f.MessageID, f.Title, string(filesJSON), f.SandboxURL, f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to create fragment: %w", err)
		}
		m.Fragment = f
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit outcome: %w", err)
	}
	return m, nil
}

const outcomeQuery = `
	SELECT m.id, m.project_id, COALESCE(m.run_id, ''), m.role, m.type, m.content, m.created_at,
		f.id, f.title, f.files, f.sandbox_url, f.created_at
	FROM messages m
	LEFT JOIN fragments f ON f.message_id = m.id
`

// OutcomeByRun returns the outcome committed by a run.
func (s *SQLiteStore) OutcomeByRun(ctx context.Context, runID string) (*Message, error) {
	rows, err := s.db.QueryContext(ctx, outcomeQuery+` WHERE m.run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("outcome for run %s: %w", runID, ErrNotFound)
	}
	return scanOutcome(rows)
}

// Outcomes returns a project's workflow outcomes, oldest first.
func (s *SQLiteStore) Outcomes(ctx context.Context, projectID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, outcomeQuery+`
		WHERE m.project_id = ? AND m.run_id IS NOT NULL
		ORDER BY m.created_at, m.rowid
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanOutcome(rows *sql.Rows) (*Message, error) {
	var m Message
	var fragID, title, files, url sql.NullString
	var fragCreated sql.NullTime
	if err := rows.Scan(&m.ID, &m.ProjectID, &m.RunID, &m.Role, &m.Type, &m.Content, &m.CreatedAt,
		&fragID, &title, &files, &url, &fragCreated); err != nil {
		return nil, fmt.Errorf("failed to scan outcome: %w", err)
	}
	if fragID.Valid {
		f := &Fragment{
			ID:         fragID.String,
			MessageID:  m.ID,
			Title:      title.String,
			SandboxURL: url.String,
			CreatedAt:  fragCreated.Time,
		}
		if err := json.Unmarshal([]byte(files.String), &f.Files); err != nil {
			return nil, fmt.Errorf("failed to decode fragment files: %w", err)
		}
		m.Fragment = f
	}
	return &m, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

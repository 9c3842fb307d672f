// Package store persists job status in SQLite so task state survives the
// HTTP request that created it and can be polled by id.
//
// Usage:
//
//	st, err := store.Open(filepath.Join(dataDir, "tasks.db"))
//	defer st.Close()
//	_ = st.Create(ctx, store.Record{ID: id, Description: "dog barking"})
//	rec, err := st.Get(ctx, id)
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/oulianov/audioghost-ai/pkg/types"
)

// Coarse task statuses reported to clients.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// ErrNotFound is returned when no row matches the task id.
var ErrNotFound = errors.New("store: task not found")

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	mode        TEXT NOT NULL DEFAULT '',
	model_size  TEXT NOT NULL DEFAULT '',
	input_path  TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL,
	percent     INTEGER NOT NULL DEFAULT 0,
	message     TEXT NOT NULL DEFAULT '',
	error_kind  TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	result      TEXT,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS tasks_created_at ON tasks(created_at);
`

// columnAdds bring databases created by older builds up to the current
// schema. A "duplicate column" error means the column is already there.
var columnAdds = []string{
	`ALTER TABLE tasks ADD COLUMN input_path TEXT NOT NULL DEFAULT ''`,
}

// Record is one task row.
type Record struct {
	ID          string
	Description string
	Mode        string
	ModelSize   string
	// InputPath is the saved upload. Batch tasks share one.
	InputPath string
	// State is the fine-grained controller state.
	State     string
	Percent   int
	Message   string
	ErrorKind string
	Error     string
	Result    *types.JobResult
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the task has settled.
func (r Record) Terminal() bool { return IsTerminal(r.State) }

// IsTerminal reports whether state is completed, failed or cancelled.
func IsTerminal(state string) bool {
	switch state {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CoarseStatus folds the intermediate controller states into "processing".
func CoarseStatus(state string) string {
	switch state {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return state
	}
	return StatusProcessing
}

// TaskStatus renders the API view of the record.
func (r Record) TaskStatus() types.TaskStatus {
	ts := types.TaskStatus{
		TaskID:    r.ID,
		Status:    CoarseStatus(r.State),
		State:     r.State,
		Progress:  r.Percent,
		Message:   r.Message,
		ErrorKind: r.ErrorKind,
	}
	if r.State == StatusCompleted {
		ts.Result = r.Result
	}
	if r.State == StatusFailed && r.Error != "" {
		ts.Message = r.Error
	}
	return ts
}

// Store is a SQLite-backed task table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path. ":memory:" is
// accepted for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: exec schema: %w", err)
	}
	for _, q := range columnAdds {
		if _, err := db.Exec(q); err != nil && !strings.Contains(err.Error(), "duplicate column") {
			db.Close()
			return nil, fmt.Errorf("store: migrate: %w", err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Create inserts a pending task.
func (s *Store) Create(ctx context.Context, r Record) error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("store: empty task id")
	}
	now := s.now().UnixNano()
	if r.State == "" {
		r.State = StatusPending
	}
	if r.Message == "" {
		r.Message = "Task submitted"
	}
	_, err := s.exec(ctx, `INSERT INTO tasks (id, description, mode, model_size, input_path, state, percent, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Description, r.Mode, r.ModelSize, r.InputPath, r.State, r.Percent, r.Message, now, now)
	if err != nil {
		return fmt.Errorf("store: create %s: %w", r.ID, err)
	}
	return nil
}

// Update records progress. Percent never moves backwards and settled tasks
// are left untouched.
func (s *Store) Update(ctx context.Context, id, state string, percent int, msg string) error {
	_, err := s.exec(ctx, `UPDATE tasks SET state = ?, percent = MAX(percent, ?), message = ?, updated_at = ?
		WHERE id = ? AND state NOT IN ('completed', 'failed', 'cancelled')`,
		state, percent, msg, s.now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("store: update %s: %w", id, err)
	}
	return nil
}

// Complete settles a task with its result. Tasks that already settled are
// left untouched.
func (s *Store) Complete(ctx context.Context, id string, res types.JobResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("store: encode result: %w", err)
	}
	_, err = s.exec(ctx, `UPDATE tasks SET state = 'completed', percent = 100, message = 'Complete!', result = ?, updated_at = ?
		WHERE id = ? AND state NOT IN ('completed', 'failed', 'cancelled')`, string(b), s.now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("store: complete %s: %w", id, err)
	}
	return nil
}

// Fail settles a task as failed or cancelled. The last percent is kept.
func (s *Store) Fail(ctx context.Context, id, state, msg, kind string) error {
	if state != StatusCancelled {
		state = StatusFailed
	}
	_, err := s.exec(ctx, `UPDATE tasks SET state = ?, message = ?, error = ?, error_kind = ?, updated_at = ?
		WHERE id = ? AND state NOT IN ('completed', 'failed', 'cancelled')`,
		state, msg, msg, kind, s.now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("store: fail %s: %w", id, err)
	}
	return nil
}

// Cancel marks a non-terminal task cancelled. It returns ErrNotFound for an
// unknown id and false when the task had already settled.
func (s *Store) Cancel(ctx context.Context, id string) (bool, error) {
	res, err := s.exec(ctx, `UPDATE tasks SET state = 'cancelled', message = 'Cancelled', error_kind = 'cancelled', updated_at = ?
		WHERE id = ? AND state NOT IN ('completed', 'failed', 'cancelled')`, s.now().UnixNano(), id)
	if err != nil {
		return false, fmt.Errorf("store: cancel %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// FailUnfinished settles every non-terminal task as failed with msg. It is
// run at startup: nothing can still be executing them.
func (s *Store) FailUnfinished(ctx context.Context, msg string) (int64, error) {
	res, err := s.exec(ctx, `UPDATE tasks SET state = 'failed', message = ?, error = ?, error_kind = 'internal', updated_at = ?
		WHERE state NOT IN ('completed', 'failed', 'cancelled')`, msg, msg, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("store: fail unfinished: %w", err)
	}
	return res.RowsAffected()
}

const selectCols = `id, description, mode, model_size, input_path, state, percent, message, error_kind, error, result, created_at, updated_at`

// Get returns the task with the given id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM tasks WHERE id = ?`, id)
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return r, err
}

// Recent returns up to limit tasks, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx, `SELECT `+selectCols+` FROM tasks ORDER BY created_at DESC, id LIMIT ?`, limit)
}

// Purge deletes settled tasks last updated before cutoff and returns them so
// the caller can remove their artifacts.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) ([]Record, error) {
	var out []Record
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT `+selectCols+` FROM tasks
			WHERE state IN ('completed', 'failed', 'cancelled') AND updated_at < ?`, cutoff.UnixNano())
		if err != nil {
			return err
		}
		out, err = collect(rows)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM tasks
			WHERE state IN ('completed', 'failed', 'cancelled') AND updated_at < ?`, cutoff.UnixNano())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store: purge: %w", err)
	}
	return out, nil
}

// InputInUse reports whether any remaining task reads the upload at path.
func (s *Store) InputInUse(ctx context.Context, path string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE input_path = ?`, path).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: input in use: %w", err)
	}
	return n > 0, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner) (Record, error) {
	var (
		r                Record
		result           sql.NullString
		created, updated int64
	)
	err := sc.Scan(&r.ID, &r.Description, &r.Mode, &r.ModelSize, &r.InputPath, &r.State, &r.Percent, &r.Message,
		&r.ErrorKind, &r.Error, &result, &created, &updated)
	if err != nil {
		return Record{}, err
	}
	if result.Valid && result.String != "" {
		var jr types.JobResult
		if err := json.Unmarshal([]byte(result.String), &jr); err != nil {
			return Record{}, fmt.Errorf("store: decode result for %s: %w", r.ID, err)
		}
		r.Result = &jr
	}
	r.CreatedAt = time.Unix(0, created)
	r.UpdatedAt = time.Unix(0, updated)
	return r, nil
}

package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DefaultLimit caps Recent when the filter sets no limit.
const DefaultLimit = 50

// Entry is one recorded device operation outcome.
type Entry struct {
	ID         int64     `json:"id" yaml:"id"`
	RunID      string    `json:"run_id" yaml:"run_id"`
	Device     string    `json:"device" yaml:"device"`
	Operation  string    `json:"operation" yaml:"operation"`
	Phase      string    `json:"phase,omitempty" yaml:"phase,omitempty"`
	Status     string    `json:"status" yaml:"status"`
	Artifact   string    `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Changes    int       `json:"changes" yaml:"changes"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	RecordedAt time.Time `json:"recorded_at" yaml:"recorded_at"`
}

// Filter narrows Recent. Empty fields match everything.
type Filter struct {
	Device    string
	Operation string
	Limit     int
}

// Journal appends operation outcomes to SQLite. Every Journal carries one run
// id shared by all entries it appends.
type Journal struct {
	db    *DB
	runID string
	now   func() time.Time
}

// Open opens (creating if needed) the journal database at path and applies migrations.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := NewDB(path)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(db.Writer); err != nil {
		db.Close()
		return nil, err
	}

	return New(db), nil
}

// New wraps an already-migrated database with a fresh run id.
func New(db *DB) *Journal {
	return &Journal{
		db:    db,
		runID: uuid.NewString(),
		now:   time.Now,
	}
}

// RunID returns the id stamped on entries appended by this journal
func (j *Journal) RunID() string {
	return j.runID
}

// Append records e. RunID and RecordedAt are filled in when empty.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	if e.RunID == "" {
		e.RunID = j.runID
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = j.now()
	}
	if strings.TrimSpace(e.Device) == "" || e.Operation == "" || e.Status == "" {
		return fmt.Errorf("journal entry needs device, operation and status")
	}

	const query = `
		INSERT INTO entries (run_id, device, operation, phase, status, artifact, change_count, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := j.db.Writer.ExecContext(ctx, query,
		e.RunID, e.Device, e.Operation, e.Phase, e.Status, e.Artifact, e.Changes, e.Error,
		e.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("append journal entry for %s: %w", e.Device, err)
	}

	return nil
}

// Recent returns the newest entries matching f, newest first.
func (j *Journal) Recent(ctx context.Context, f Filter) ([]Entry, error) {
	query := `
		SELECT id, run_id, device, operation, phase, status, artifact, change_count, error, recorded_at
		FROM entries
		WHERE 1 = 1
	`
	var args []interface{}

	if f.Device != "" {
		query += " AND device = ? COLLATE NOCASE"
		args = append(args, f.Device)
	}
	if f.Operation != "" {
		query += " AND operation = ?"
		args = append(args, f.Operation)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			recorded string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Device, &e.Operation, &e.Phase, &e.Status,
			&e.Artifact, &e.Changes, &e.Error, &recorded); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if e.RecordedAt, err = time.Parse(timeLayout, recorded); err != nil {
			return nil, fmt.Errorf("parse journal timestamp %q: %w", recorded, err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Close closes the underlying database
func (j *Journal) Close() error {
	return j.db.Close()
}

// Package history keeps a SQLite log of slot operations.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/olimci/bootslot/pkg/slot"
)

const schema = `
CREATE TABLE IF NOT EXISTS operations (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    started_ns  INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    slot        TEXT NOT NULL,
    op          TEXT NOT NULL,
    hash        TEXT NOT NULL DEFAULT '',
    outcome     TEXT NOT NULL,
    message     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_operations_started ON operations(started_ns);
CREATE INDEX IF NOT EXISTS idx_operations_slot ON operations(slot, started_ns);
`

// Entry is one logged operation.
type Entry struct {
	ID       int64
	Started  time.Time
	Duration time.Duration
	Slot     string
	Op       string
	Hash     string
	Outcome  string
	Message  string
}

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens or creates the database at path and applies the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Append(e Entry) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO operations (started_ns, duration_ms, slot, op, hash, outcome, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Started.UnixNano(), e.Duration.Milliseconds(), e.Slot, e.Op, e.Hash, e.Outcome, e.Message,
	)
	if err != nil {
		return 0, fmt.Errorf("insert operation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	return id, nil
}

// Observe implements slot.Observer. Write failures are logged, not returned.
func (s *Store) Observe(op slot.Operation) {
	_, err := s.Append(Entry{
		Started:  op.Started,
		Duration: op.Duration,
		Slot:     op.Slot,
		Op:       op.Name,
		Hash:     op.Hash.String(),
		Outcome:  slot.Reason(op.Err),
		Message:  slot.Message(op.Err),
	})
	if err != nil {
		s.logger.Warn("record operation history", zap.String("op", op.Name), zap.Error(err))
	}
}

// Recent returns up to limit entries, newest first. An empty slotName
// matches every slot.
func (s *Store) Recent(limit int, slotName string) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, started_ns, duration_ms, slot, op, hash, outcome, message
		FROM operations
		WHERE (? = '' OR slot = ?)
		ORDER BY started_ns DESC, id DESC
		LIMIT ?`, slotName, slotName, limit)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			startedNs  int64
			durationMs int64
		)
		if err := rows.Scan(&e.ID, &startedNs, &durationMs, &e.Slot, &e.Op, &e.Hash, &e.Outcome, &e.Message); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		e.Started = time.Unix(0, startedNs)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return out, nil
}

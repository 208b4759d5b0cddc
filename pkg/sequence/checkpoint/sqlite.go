package checkpoint

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists checkpoints to SQLite. Kind, step and successor
// are stored as columns so runs can be listed without decoding state.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// timeLayout has a fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id     TEXT    NOT NULL,
	step       TEXT    NOT NULL,
	kind       TEXT    NOT NULL,
	next_step  TEXT    NOT NULL,
	sequence   INTEGER NOT NULL,
	created_at TEXT    NOT NULL,
	data       BLOB    NOT NULL,
	PRIMARY KEY (run_id, step)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_run_seq
	ON checkpoints(run_id, sequence);
`

// NewSQLiteStore opens (or creates) a checkpoint store at path.
// Use ":memory:" for a throwaway store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Each :memory: connection is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(checkpointSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(cp *Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}
	data, err := cp.Marshal()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err = s.db.Exec(`
		INSERT INTO checkpoints
			(run_id, step, kind, next_step, sequence, created_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, step) DO UPDATE SET
			kind = excluded.kind,
			next_step = excluded.next_step,
			sequence = excluded.sequence,
			created_at = excluded.created_at,
			data = excluded.data
	`, cp.RunID, cp.Step, cp.Kind, cp.NextStep, cp.Sequence,
		cp.Timestamp.UTC().Format(timeLayout), data)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Latest implements Store.
func (s *SQLiteStore) Latest(runID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRow(`
		SELECT data FROM checkpoints
		WHERE run_id = ?
		ORDER BY sequence DESC
		LIMIT 1
	`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return Unmarshal(data)
}

// List implements Store.
func (s *SQLiteStore) List(runID string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	return s.query(`
		SELECT run_id, kind, step, next_step, sequence, created_at, LENGTH(data)
		FROM checkpoints
		WHERE run_id = ?
		ORDER BY sequence
	`, runID)
}

// Interrupted implements Store.
func (s *SQLiteStore) Interrupted() ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	return s.query(`
		SELECT c.run_id, c.kind, c.step, c.next_step, c.sequence,
			c.created_at, LENGTH(c.data)
		FROM checkpoints c
		JOIN (
			SELECT run_id, MAX(sequence) AS sequence
			FROM checkpoints GROUP BY run_id
		) latest ON latest.run_id = c.run_id AND latest.sequence = c.sequence
		WHERE c.next_step != ?
		ORDER BY c.created_at
	`, End)
}

func (s *SQLiteStore) query(q string, args ...any) ([]Info, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	infos := []Info{}
	for rows.Next() {
		var info Info
		var created string
		if err := rows.Scan(&info.RunID, &info.Kind, &info.Step,
			&info.NextStep, &info.Sequence, &created, &info.Size); err != nil {
			return nil, fmt.Errorf("scan checkpoint info: %w", err)
		}
		info.Timestamp, _ = time.Parse(timeLayout, created)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return infos, nil
}

// DeleteRun implements Store.
func (s *SQLiteStore) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM checkpoints WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run checkpoints: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/randalmurphal/appforge/internal/flowstate"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by SQLite.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS configs (
	flow_id TEXT NOT NULL,
	version INTEGER NOT NULL,
	config_json TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (flow_id, version)
);
CREATE TABLE IF NOT EXISTS datasets (
	flow_id TEXT NOT NULL,
	name TEXT NOT NULL,
	data_json TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (flow_id, name)
);
CREATE TABLE IF NOT EXISTS step_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	flow_id TEXT NOT NULL,
	step TEXT NOT NULL,
	outcome TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_step_log_flow ON step_log(flow_id, id);
`

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema. Use ":memory:" for a throwaway store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// MaxVersion implements Store.
func (s *SQLiteStore) MaxVersion(ctx context.Context, flowID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM configs WHERE flow_id = ?`, flowID,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("max version: %w", err)
	}
	return int(version.Int64), nil
}

// GetConfig implements Store.
func (s *SQLiteStore) GetConfig(ctx context.Context, flowID string, version int) (flowstate.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT config_json FROM configs WHERE flow_id = ? AND version = ?`,
		flowID, version,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return flowstate.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}

	doc := flowstate.Document{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode config %s@%d: %w", flowID, version, err)
	}
	return doc, nil
}

// SaveConfig implements Store. The next version is computed and written
// in one statement; the primary key rejects a duplicate version.
func (s *SQLiteStore) SaveConfig(ctx context.Context, flowID string, doc flowstate.Document) (int, error) {
	if doc == nil {
		doc = flowstate.Document{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("encode config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var version int
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO configs (flow_id, version, config_json, created_at)
		SELECT ?, COALESCE(MAX(version), 0) + 1, ?, ?
		FROM configs WHERE flow_id = ?
		RETURNING version
	`, flowID, string(raw), now(), flowID).Scan(&version)
	if err != nil {
		if isConstraint(err) {
			return 0, fmt.Errorf("%w: %s", ErrVersionConflict, flowID)
		}
		return 0, fmt.Errorf("save config: %w", err)
	}
	return version, nil
}

// GetAllDatasets implements Store.
func (s *SQLiteStore) GetAllDatasets(ctx context.Context, flowID string) (flowstate.Datasets, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, data_json FROM datasets WHERE flow_id = ? ORDER BY name`, flowID)
	if err != nil {
		return nil, fmt.Errorf("get datasets: %w", err)
	}
	defer rows.Close()

	result := flowstate.Datasets{}
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		var records []flowstate.Record
		if err := json.Unmarshal([]byte(raw), &records); err != nil {
			return nil, fmt.Errorf("decode dataset %s: %w", name, err)
		}
		if records == nil {
			records = []flowstate.Record{}
		}
		result[name] = records
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}
	return result, nil
}

// SaveDataset implements Store.
func (s *SQLiteStore) SaveDataset(ctx context.Context, flowID, name string, records []flowstate.Record) error {
	if records == nil {
		records = []flowstate.Record{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode dataset %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO datasets (flow_id, name, data_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(flow_id, name) DO UPDATE SET
			data_json = excluded.data_json,
			updated_at = excluded.updated_at
	`, flowID, name, string(raw), now())
	if err != nil {
		return fmt.Errorf("save dataset %s: %w", name, err)
	}
	return nil
}

// AppendLog implements Store.
func (s *SQLiteStore) AppendLog(ctx context.Context, entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO step_log (flow_id, step, outcome, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.FlowID, entry.Step, entry.Outcome, entry.Payload, now())
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// ListLog implements Store.
func (s *SQLiteStore) ListLog(ctx context.Context, flowID string) ([]LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, flow_id, step, outcome, payload, created_at
		FROM step_log WHERE flow_id = ? ORDER BY id
	`, flowID)
	if err != nil {
		return nil, fmt.Errorf("list log: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var created string
		if err := rows.Scan(&e.ID, &e.FlowID, &e.Step, &e.Outcome, &e.Payload, &created); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return entries, nil
}

// Close implements Store. Closing twice is safe.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func isConstraint(err error) bool {
	return strings.Contains(err.Error(), "constraint failed")
}

// Package store persists flow artifacts: versioned configurations, named
// datasets, and the append-only step log.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/randalmurphal/appforge/internal/flowstate"
)

// Store persists artifacts keyed by flow identifier.
// Every call is its own atomic unit. Implementations must be safe for
// concurrent use.
type Store interface {
	// MaxVersion returns the latest configuration version, or 0 if none.
	MaxVersion(ctx context.Context, flowID string) (int, error)

	// GetConfig returns a configuration version. A missing version yields
	// an empty, non-nil document.
	GetConfig(ctx context.Context, flowID string, version int) (flowstate.Document, error)

	// SaveConfig stores doc as version MaxVersion+1 and returns that
	// version. Concurrent saves for one flow never share a version.
	SaveConfig(ctx context.Context, flowID string, doc flowstate.Document) (int, error)

	// GetAllDatasets returns every dataset of a flow, empty if none.
	GetAllDatasets(ctx context.Context, flowID string) (flowstate.Datasets, error)

	// SaveDataset overwrites one named dataset.
	SaveDataset(ctx context.Context, flowID, name string, records []flowstate.Record) error

	// AppendLog appends a step log entry.
	AppendLog(ctx context.Context, entry LogEntry) error

	// ListLog returns a flow's log entries in insertion order.
	ListLog(ctx context.Context, flowID string) ([]LogEntry, error)

	Close() error
}

// LogEntry records the outcome of one step.
type LogEntry struct {
	ID        int64     `json:"id"`
	FlowID    string    `json:"flow_id"`
	Step      string    `json:"step"`
	Outcome   string    `json:"outcome"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// OutcomeSuccess is the outcome recorded for a completed step.
const OutcomeSuccess = "success"

var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("store closed")

	// ErrVersionConflict indicates a configuration version was taken by
	// a concurrent writer.
	ErrVersionConflict = errors.New("configuration version conflict")
)

// Latest returns the newest configuration of a flow and its version.
// A flow without configurations yields an empty document and version 0.
func Latest(ctx context.Context, s Store, flowID string) (flowstate.Document, int, error) {
	version, err := s.MaxVersion(ctx, flowID)
	if err != nil {
		return nil, 0, err
	}
	doc, err := s.GetConfig(ctx, flowID, version)
	if err != nil {
		return nil, 0, err
	}
	return doc, version, nil
}

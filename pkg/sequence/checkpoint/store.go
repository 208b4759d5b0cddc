// Package checkpoint provides persistent checkpoint storage so an
// interrupted run can be resumed.
package checkpoint

import (
	"errors"
	"time"
)

// Store persists checkpoints.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save records cp under (cp.RunID, cp.Step), replacing any earlier
	// checkpoint of that step.
	Save(cp *Checkpoint) error

	// Latest returns the run's checkpoint with the highest sequence.
	// Returns ErrNotFound if the run has none.
	Latest(runID string) (*Checkpoint, error)

	// List returns the run's checkpoints ordered by sequence.
	// Returns an empty slice (not an error) if the run has none.
	List(runID string) ([]Info, error)

	// Interrupted returns the latest checkpoint of every run that still
	// has a step left, oldest first.
	Interrupted() ([]Info, error)

	// DeleteRun removes all checkpoints for a run.
	DeleteRun(runID string) error

	// Close releases any resources.
	Close() error
}

// Info describes a checkpoint without its state.
type Info struct {
	RunID     string    `json:"run_id"`
	Kind      string    `json:"kind"`
	Step      string    `json:"step"`
	NextStep  string    `json:"next_step"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
}

var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrMissingRunID rejects checkpoints without a run or step.
	ErrMissingRunID = errors.New("checkpoint needs a run id and step")
)

func validate(cp *Checkpoint) error {
	if cp == nil || cp.RunID == "" || cp.Step == "" {
		return ErrMissingRunID
	}
	return nil
}

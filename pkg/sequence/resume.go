package sequence

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/appforge/pkg/sequence/checkpoint"
)

// Resume continues a run from its latest checkpoint. The state saved in
// the checkpoint is restored and execution starts at the step that was
// due next. Checkpointing stays enabled on the same store and run ID.
//
// Resuming a run whose last checkpoint points at END returns the saved
// state without executing anything.
func (c *Compiled[S]) Resume(ctx Context, store checkpoint.Store, runID string, opts ...RunOption) (S, error) {
	var zero S

	if ctx == nil {
		return zero, ErrNilContext
	}

	cp, err := store.Latest(runID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return zero, fmt.Errorf("%w: %s", ErrNoCheckpoints, runID)
	}
	if err != nil {
		return zero, fmt.Errorf("load checkpoint: %w", err)
	}

	if cp.Version != checkpoint.Version {
		return zero, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}
	if cp.Kind != "" && cp.Kind != c.kind {
		return zero, fmt.Errorf("%w: checkpoint is %s, sequence is %s", ErrKindMismatch, cp.Kind, c.kind)
	}

	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	if cp.NextStep != END && !c.HasStep(cp.NextStep) {
		return state, fmt.Errorf("%w: %s", ErrInvalidResumeStep, cp.NextStep)
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.checkpointStore = store
	cfg.runID = runID
	cfg.sequence = cp.Sequence

	return c.execute(ctx, state, cp.NextStep, &cfg)
}

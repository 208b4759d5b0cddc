package checkpoint

import (
	"encoding/json"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 1

// End is the NextStep of a checkpoint taken after the last step of a run.
const End = "__end__"

// Checkpoint is the persisted snapshot taken after a step completes.
// It contains everything needed to continue the run at NextStep.
type Checkpoint struct {
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	Kind      string    `json:"kind"`
	Step      string    `json:"step"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	State    json.RawMessage `json:"state"`
	NextStep string          `json:"next_step"`

	Attempt  int    `json:"attempt"`
	PrevStep string `json:"prev_step,omitempty"`
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// New creates a checkpoint. State must already be JSON-serialized.
func New(runID, kind, step string, sequence int, state []byte, nextStep string) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		RunID:     runID,
		Kind:      kind,
		Step:      step,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		State:     state,
		NextStep:  nextStep,
		Attempt:   1,
	}
}

// WithAttempt sets the attempt number.
func (c *Checkpoint) WithAttempt(attempt int) *Checkpoint {
	c.Attempt = attempt
	return c
}

// WithPrevStep records the step that ran before this one.
func (c *Checkpoint) WithPrevStep(prev string) *Checkpoint {
	c.PrevStep = prev
	return c
}

// Finished reports whether no step remains after this checkpoint.
func (c *Checkpoint) Finished() bool {
	return c.NextStep == End
}

func (c *Checkpoint) info(size int) Info {
	return Info{
		RunID:     c.RunID,
		Kind:      c.Kind,
		Step:      c.Step,
		NextStep:  c.NextStep,
		Sequence:  c.Sequence,
		Timestamp: c.Timestamp,
		Size:      int64(size),
	}
}

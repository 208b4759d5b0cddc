package sequence

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for building and compilation.
var (
	// ErrNoStart indicates SetStart (or Chain) was not called before Compile.
	ErrNoStart = errors.New("start step not set")

	// ErrStartNotFound indicates the start references a non-existent step.
	ErrStartNotFound = errors.New("start step not found")

	// ErrStepNotFound indicates an edge references a non-existent step.
	ErrStepNotFound = errors.New("step not found")

	// ErrNotLinear indicates a step has more than one successor.
	ErrNotLinear = errors.New("sequence is not linear")

	// ErrCycle indicates the successor chain revisits a step.
	ErrCycle = errors.New("sequence contains a cycle")

	// ErrNoPathToEnd indicates the chain from the start never reaches END.
	ErrNoPathToEnd = errors.New("no path to END from start")
)

// Sentinel errors for execution.
var (
	// ErrNilContext indicates Run was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrMissingPrerequisite indicates a step ran before its required fields existed.
	ErrMissingPrerequisite = errors.New("missing prerequisite fields")
)

// Sentinel errors for checkpointing and resume.
var (
	// ErrRunIDRequired indicates checkpointing was enabled without a run ID.
	ErrRunIDRequired = errors.New("run ID required for checkpointing")

	// ErrDeserializeState indicates a checkpointed state could not be decoded.
	ErrDeserializeState = errors.New("failed to deserialize state")

	// ErrNoCheckpoints indicates no checkpoints exist for the run.
	ErrNoCheckpoints = errors.New("no checkpoints found for run")

	// ErrInvalidResumeStep indicates the resume step doesn't exist in the sequence.
	ErrInvalidResumeStep = errors.New("invalid resume step")

	// ErrKindMismatch indicates a checkpoint belongs to another flow kind.
	ErrKindMismatch = errors.New("checkpoint kind mismatch")

	// ErrCheckpointVersionMismatch indicates the checkpoint format is incompatible.
	ErrCheckpointVersionMismatch = errors.New("checkpoint version mismatch")
)

// StepError wraps an error returned by a step.
type StepError struct {
	// Step is the name of the step that failed.
	Step string
	// Op is the operation that failed ("execute", "lookup").
	Op string
	// Err is the underlying error.
	Err error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %s: %v", e.Step, e.Op, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised inside a step.
type PanicError struct {
	Step  string
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("step %s panicked: %v", e.Step, e.Value)
}

// CancellationError reports that the run context ended before or during
// a step. State holds the state as of cancellation.
type CancellationError struct {
	Step         string
	State        any
	Cause        error
	WasExecuting bool
}

func (e *CancellationError) Error() string {
	if e.WasExecuting {
		return fmt.Sprintf("cancelled during step %s: %v", e.Step, e.Cause)
	}
	return fmt.Sprintf("cancelled before step %s: %v", e.Step, e.Cause)
}

func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// PrerequisiteError reports the fields a step required but did not find.
type PrerequisiteError struct {
	Step    string
	Missing []string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("step %s: %v: %s", e.Step, ErrMissingPrerequisite, strings.Join(e.Missing, ", "))
}

func (e *PrerequisiteError) Unwrap() error {
	return ErrMissingPrerequisite
}

// CheckpointError wraps a failed checkpoint operation.
type CheckpointError struct {
	Step string
	// Op is "serialize", "marshal" or "save".
	Op  string
	Err error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s at step %s: %v", e.Op, e.Step, e.Err)
}

func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step name carried by err, or "" when err holds
// no step information.
func FailedStep(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return panicErr.Step
	}
	var cancelErr *CancellationError
	if errors.As(err, &cancelErr) {
		return cancelErr.Step
	}
	var preErr *PrerequisiteError
	if errors.As(err, &preErr) {
		return preErr.Step
	}
	var cpErr *CheckpointError
	if errors.As(err, &cpErr) {
		return cpErr.Step
	}
	return ""
}

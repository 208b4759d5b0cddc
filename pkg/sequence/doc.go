/*
Package sequence executes strictly linear chains of named steps over a
typed state.

# Overview

A sequence is built once per flow kind, compiled, and then run many times
with independent states. Each step receives the state by value and
returns the updated state. After a step finishes, the executor looks up
its successor and continues until the successor is END.

	type State struct {
	    Input  string
	    Output string
	}

	seq := sequence.New[State]("demo").
	    AddStep(sequence.Step[State]{Name: "upper", Run: upper}).
	    AddStep(sequence.Step[State]{Name: "store", Requires: []string{"output"}, Run: store}).
	    Chain("upper", "store")

	compiled, err := seq.Compile()
	if err != nil {
	    log.Fatal(err)
	}

	ctx := sequence.NewContext(context.Background())
	result, err := compiled.Run(ctx, State{Input: "hello"})

# Prerequisites

A step may list the state fields it requires. When the state implements
Prerequisites, the executor refuses to run a step whose fields are not
populated yet and returns a PrerequisiteError.

# Errors

The executor never swallows or announces errors. Step failures come back
as StepError, panics as PanicError, a cancelled context as
CancellationError. FailedStep extracts the step name from any of them.

# Checkpointing

With WithCheckpointing and WithRunID a checkpoint is saved after every
successful step. Resume continues a run from its latest checkpoint.

	compiled.Run(ctx, state,
	    sequence.WithRunID("run-123"),
	    sequence.WithCheckpointing(store))

	// after a crash
	result, err := compiled.Resume(ctx, store, "run-123")

# Observability

WithObservabilityLogger, WithMetrics and WithTracing enable slog records,
OpenTelemetry metrics and OpenTelemetry spans for runs and steps.
*/
package sequence

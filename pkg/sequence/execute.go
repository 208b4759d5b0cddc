package sequence

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/appforge/pkg/sequence/checkpoint"
	"github.com/randalmurphal/appforge/pkg/sequence/observability"
	"go.opentelemetry.io/otel/trace"
)

// Run executes the sequence from its start step.
// See RunFrom.
func (c *Compiled[S]) Run(ctx Context, state S, opts ...RunOption) (S, error) {
	return c.RunFrom(ctx, state, c.start, opts...)
}

// RunFrom executes the sequence beginning at start and returns the final
// state.
//
// Execution flow:
//  1. Check for cancellation
//  2. Check the step's prerequisites (when S implements Prerequisites)
//  3. Execute the step with panic recovery
//  4. Look up the successor
//  5. Save a checkpoint (when enabled)
//  6. Repeat until the successor is END or an error occurs
//
// Errors are returned, never announced: the caller decides how to surface
// them. On error the returned state is the state left by the last step
// that completed; the failing step's partial result is discarded.
func (c *Compiled[S]) RunFrom(ctx Context, state S, start string, opts ...RunOption) (result S, runErr error) {
	if ctx == nil {
		return state, ErrNilContext
	}
	if start != END && !c.HasStep(start) {
		return state, fmt.Errorf("%w: %s", ErrStartNotFound, start)
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return c.execute(ctx, state, start, &cfg)
}

func (c *Compiled[S]) execute(ctx Context, state S, start string, cfg *runConfig) (result S, runErr error) {
	if cfg.checkpointStore != nil && cfg.runID == "" {
		return state, ErrRunIDRequired
	}

	runID := cfg.runID
	if runID == "" {
		runID = ctx.RunID()
	}

	startTime := time.Now()
	observability.LogRunStart(cfg.logger, c.kind, runID, start)

	var tracingCtx context.Context = ctx
	var runSpan trace.Span
	if cfg.tracing {
		tracingCtx, runSpan = cfg.spans.StartRunSpan(ctx, c.kind, runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	var count int
	result, count, runErr = c.loop(tracingCtx, asExecutionContext(ctx), state, start, cfg)

	duration := time.Since(startTime)
	cfg.metrics.RecordRun(ctx, c.kind, runErr == nil, duration)

	if runErr != nil {
		observability.LogRunError(cfg.logger, c.kind, runID, runErr, float64(duration.Milliseconds()), FailedStep(runErr))
	} else {
		observability.LogRunComplete(cfg.logger, c.kind, runID, float64(duration.Milliseconds()), count)
	}
	return result, runErr
}

// loop walks the successor chain. It returns the final state, the number
// of steps executed, and any error.
func (c *Compiled[S]) loop(tracingCtx context.Context, ec *executionContext, state S, start string, cfg *runConfig) (S, int, error) {
	current := start
	prev := ""
	count := 0

	for current != END {
		select {
		case <-ec.Done():
			return state, count, &CancellationError{
				Step:  current,
				State: state,
				Cause: ec.Err(),
			}
		default:
		}

		if missing := missingFields(state, c.steps[current].Requires); len(missing) > 0 {
			err := &PrerequisiteError{Step: current, Missing: missing}
			observability.LogStepError(cfg.logger, current, err)
			return state, count, err
		}

		observability.LogStepStart(cfg.logger, current)

		stepTracingCtx := tracingCtx
		var stepSpan trace.Span
		if cfg.tracing {
			stepTracingCtx, stepSpan = cfg.spans.StartStepSpan(tracingCtx, current)
		}

		stepStart := time.Now()
		next, stepErr := c.executeStep(ec.withStep(stepTracingCtx, current), current, state)
		stepDuration := time.Since(stepStart)

		cfg.metrics.RecordStepExecution(stepTracingCtx, c.kind, current, stepDuration, stepErr)
		if cfg.tracing {
			cfg.spans.EndSpanWithError(stepSpan, stepErr)
		}

		if stepErr != nil {
			if ctxErr := ec.Err(); ctxErr != nil {
				stepErr = &CancellationError{
					Step:         current,
					State:        state,
					Cause:        ctxErr,
					WasExecuting: true,
				}
			}
			observability.LogStepError(cfg.logger, current, stepErr)
			return state, count, stepErr
		}
		observability.LogStepComplete(cfg.logger, current, float64(stepDuration.Milliseconds()))

		state = next
		count++

		successor, ok := c.Successor(current)
		if !ok {
			return state, count, &StepError{
				Step: current,
				Op:   "routing",
				Err:  fmt.Errorf("no successor for step %s", current),
			}
		}

		if cfg.checkpointStore != nil {
			if err := c.saveCheckpoint(ec, cfg, current, prev, state, successor); err != nil {
				return state, count, err
			}
		}

		prev = current
		current = successor
	}

	return state, count, nil
}

// executeStep runs one step with panic recovery.
func (c *Compiled[S]) executeStep(ctx Context, name string, state S) (result S, err error) {
	step, exists := c.getStep(name)
	if !exists {
		return state, &StepError{
			Step: name,
			Op:   "lookup",
			Err:  fmt.Errorf("%w: %s", ErrStepNotFound, name),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				Step:  name,
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()

	result, err = step.Run(ctx, state)
	if err != nil {
		return state, &StepError{Step: name, Op: "execute", Err: err}
	}
	return result, nil
}

func (c *Compiled[S]) saveCheckpoint(ec *executionContext, cfg *runConfig, step, prev string, state S, next string) error {
	fail := func(op string, err error) error {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{Step: step, Op: op, Err: err}
		}
		observability.LogCheckpointError(cfg.logger, step, op, err)
		return nil
	}

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return fail("serialize", err)
	}

	cfg.sequence++
	cp := checkpoint.New(cfg.runID, c.kind, step, cfg.sequence, stateBytes, next).
		WithPrevStep(prev).
		WithAttempt(ec.attempt)

	if err := cfg.checkpointStore.Save(cp); err != nil {
		return fail("save", err)
	}

	observability.LogCheckpoint(cfg.logger, step, len(stateBytes))
	cfg.metrics.RecordCheckpoint(ec, step, int64(len(stateBytes)))
	return nil
}

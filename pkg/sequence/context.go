package sequence

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/randalmurphal/appforge/pkg/sequence/observability"
)

// Context provides execution context to steps.
// It extends context.Context with a logger and run metadata.
//
// Context is immutable after creation. The executor derives a context for
// each step with Step set and an enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run and step
	// fields during execution. Never returns nil.
	Logger() *slog.Logger

	// RunID returns the unique identifier for this run.
	RunID() string

	// Step returns the step being executed, or "" outside a step.
	Step() string

	// Attempt returns the attempt number (1 = first attempt).
	Attempt() int
}

type executionContext struct {
	context.Context

	logger  *slog.Logger
	runID   string
	step    string
	attempt int
}

func (c *executionContext) Logger() *slog.Logger { return c.logger }
func (c *executionContext) RunID() string        { return c.runID }
func (c *executionContext) Step() string         { return c.step }
func (c *executionContext) Attempt() int         { return c.attempt }

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextRunID sets the run identifier used for logging.
// If not set, a UUID is generated. For checkpointing use the WithRunID
// run option.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// WithAttempt sets the attempt number reported to steps.
func WithAttempt(n int) ContextOption {
	return func(c *executionContext) {
		if n > 0 {
			c.attempt = n
		}
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := sequence.NewContext(context.Background(),
//	    sequence.WithLogger(logger),
//	    sequence.WithContextRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
		attempt: 1,
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec
}

// withStep returns a derived context for one step. tracing carries the
// span context of the step span.
func (c *executionContext) withStep(tracing context.Context, step string) *executionContext {
	return &executionContext{
		Context: tracing,
		logger:  observability.EnrichLogger(c.logger, c.runID, step, c.attempt),
		runID:   c.runID,
		step:    step,
		attempt: c.attempt,
	}
}

// asExecutionContext adapts a caller-supplied Context implementation.
func asExecutionContext(ctx Context) *executionContext {
	if ec, ok := ctx.(*executionContext); ok {
		return ec
	}
	return &executionContext{
		Context: ctx,
		logger:  ctx.Logger(),
		runID:   ctx.RunID(),
		step:    ctx.Step(),
		attempt: ctx.Attempt(),
	}
}

// Package runner executes flow runs in the background with an explicit
// lifecycle: runs are submitted, bounded by a supervisory timeout, and
// cancelled and awaited on shutdown.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/randalmurphal/appforge/internal/flowstate"
)

// FinalStep is the step name carried by the error announced when a run
// fails as a whole.
const FinalStep = "execute_flow"

// ErrShuttingDown is returned by Submit once Shutdown has begun.
var ErrShuttingDown = errors.New("runner is shutting down")

// ErrRunActive is returned by Submit for a run id that is still running.
var ErrRunActive = errors.New("run is still active")

// ErrRunTimeout is the cause of a run that exceeded its timeout.
var ErrRunTimeout = errors.New("run timed out")

// ErrorAnnouncer announces a failed run. *notify.Notifier implements it.
type ErrorAnnouncer interface {
	Error(flowID, step, message string)
}

// Status of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Job is one run to execute.
type Job struct {
	RunID  string
	FlowID string
	Kind   flowstate.Kind

	// Exec performs the run. ctx is cancelled on timeout or shutdown.
	Exec func(ctx context.Context) error
}

// Info describes a submitted run.
type Info struct {
	RunID      string         `json:"run_id"`
	FlowID     string         `json:"flow_id"`
	Kind       flowstate.Kind `json:"kind"`
	Status     Status         `json:"status"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Config configures a Runner.
type Config struct {
	// RunTimeout bounds each run. Zero disables the bound.
	RunTimeout time.Duration

	// MaxConcurrent limits runs executing at once; extra runs wait for
	// a slot. Zero means unlimited.
	MaxConcurrent int

	// MaxHistory bounds how many finished runs are remembered.
	// Default: 1000
	MaxHistory int
}

// Runner executes jobs in goroutines.
type Runner struct {
	cfg      Config
	notifier ErrorAnnouncer
	logger   *slog.Logger

	base   context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup

	mu       sync.RWMutex
	closing  bool
	runs     map[string]*Info
	finished []string
}

// New creates a runner.
func New(cfg Config, notifier ErrorAnnouncer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 1000
	}

	base, cancel := context.WithCancel(context.Background())
	r := &Runner{
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
		base:     base,
		cancel:   cancel,
		runs:     make(map[string]*Info),
	}
	if cfg.MaxConcurrent > 0 {
		r.sem = make(chan struct{}, cfg.MaxConcurrent)
	}
	return r
}

// Submit starts job in the background and returns immediately. A run id
// may be submitted again once its previous run has finished.
func (r *Runner) Submit(job Job) error {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return ErrShuttingDown
	}
	if prev, ok := r.runs[job.RunID]; ok {
		if prev.Status == StatusRunning {
			r.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrRunActive, job.RunID)
		}
		r.forget(job.RunID)
	}
	r.runs[job.RunID] = &Info{
		RunID:     job.RunID,
		FlowID:    job.FlowID,
		Kind:      job.Kind,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go r.execute(job)
	return nil
}

func (r *Runner) execute(job Job) {
	defer r.wg.Done()

	logger := r.logger.With(
		slog.String("run_id", job.RunID),
		slog.String("flow_id", job.FlowID),
		slog.String("kind", string(job.Kind)))

	if r.sem != nil {
		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		case <-r.base.Done():
			r.finish(job, logger, fmt.Errorf("run not started: %w", r.base.Err()))
			return
		}
	}

	ctx := r.base
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, r.cfg.RunTimeout, ErrRunTimeout)
		defer cancel()
	}

	r.finish(job, logger, r.call(ctx, job))
}

// call runs the job, turning a panic into an error.
func (r *Runner) call(ctx context.Context, job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("run panicked",
				slog.String("run_id", job.RunID),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	err = job.Exec(ctx)
	if err != nil && errors.Is(context.Cause(ctx), ErrRunTimeout) {
		err = fmt.Errorf("%w after %s: %w", ErrRunTimeout, r.cfg.RunTimeout, err)
	}
	return err
}

func (r *Runner) finish(job Job, logger *slog.Logger, err error) {
	status := StatusSucceeded
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) && r.base.Err() != nil:
		status = StatusCancelled
	default:
		status = StatusFailed
	}

	if err != nil {
		logger.Error("run failed", slog.String("error", err.Error()))
		if r.notifier != nil {
			r.notifier.Error(job.FlowID, FinalStep, "Error executing flow: "+err.Error())
		}
	} else {
		logger.Info("run finished")
	}

	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.runs[job.RunID]; ok {
		info.Status = status
		info.FinishedAt = &now
		if err != nil {
			info.Error = err.Error()
		}
	}
	r.finished = append(r.finished, job.RunID)
	for len(r.finished) > r.cfg.MaxHistory {
		delete(r.runs, r.finished[0])
		r.finished = r.finished[1:]
	}
}

// forget drops runID from the finished history. Callers hold mu.
func (r *Runner) forget(runID string) {
	for i, id := range r.finished {
		if id == runID {
			r.finished = append(r.finished[:i], r.finished[i+1:]...)
			return
		}
	}
}

// Get returns a copy of a run's info.
func (r *Runner) Get(runID string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.runs[runID]
	if !ok {
		return Info{}, false
	}
	return *info, true
}

// Active returns the number of runs not yet finished.
func (r *Runner) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, info := range r.runs {
		if info.Status == StatusRunning {
			n++
		}
	}
	return n
}

// Wait blocks until every submitted run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown stops accepting runs, cancels the ones in flight and waits
// for them to return or for ctx to end.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for runs: %w", ctx.Err())
	}
}

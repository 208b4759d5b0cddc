// Package orchestrator accepts flow triggers, runs them in the background
// and answers queries about generated applications.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/randalmurphal/appforge/internal/flowstate"
	"github.com/randalmurphal/appforge/internal/notify"
	"github.com/randalmurphal/appforge/internal/runner"
	"github.com/randalmurphal/appforge/internal/steps"
	"github.com/randalmurphal/appforge/internal/store"
	"github.com/randalmurphal/appforge/pkg/sequence"
	"github.com/randalmurphal/appforge/pkg/sequence/checkpoint"
	"github.com/tidwall/gjson"
)

// DefaultEditFlowID is the flow edited when an edit trigger names none.
const DefaultEditFlowID = "default-project-123456"

var (
	// ErrInvalidMode rejects a trigger whose mode is not create or edit.
	ErrInvalidMode = errors.New("invalid mode: must be 'create' or 'edit'")

	// ErrInstructionRequired rejects a trigger with a blank user_input.
	ErrInstructionRequired = errors.New("user_input is required")

	// ErrFlowIDRequired rejects an edit trigger without a flow id when no
	// default is configured.
	ErrFlowIDRequired = errors.New("project_id is required for edit")

	// ErrRunNotFound means no checkpoint exists for the run.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunActive means the run is still executing.
	ErrRunActive = errors.New("run is still active")

	// ErrRunFinished means the run already reached its last step.
	ErrRunFinished = errors.New("run already finished")

	// ErrResumeDisabled means checkpoints are not being recorded.
	ErrResumeDisabled = errors.New("resume requires checkpoints")
)

// TriggerRequest starts a flow run.
type TriggerRequest struct {
	FlowID      string           `json:"project_id,omitempty"`
	Mode        string           `json:"mode"`
	Instruction string           `json:"user_input"`
	History     []flowstate.Turn `json:"chat_history,omitempty"`
	UserID      string           `json:"user_id,omitempty"`
}

// Ack acknowledges a started run.
type Ack struct {
	Status  string `json:"status"`
	FlowID  string `json:"project_id"`
	RunID   string `json:"run_id"`
	Channel string `json:"ws_channel"`
}

// Project is the latest persisted state of a generated application.
type Project struct {
	FlowID   string             `json:"project_id"`
	Config   flowstate.Document `json:"appConfig"`
	MockData flowstate.Datasets `json:"mockData"`
}

// Config configures an Orchestrator.
type Config struct {
	// DefaultEditFlowID is used for edit triggers without a flow id.
	// Empty makes the id mandatory.
	DefaultEditFlowID string

	Metrics bool
	Tracing bool
}

// Orchestrator wires triggers to the step sequences and the runner.
type Orchestrator struct {
	cfg         Config
	store       store.Store
	flows       *steps.Flows
	runner      *runner.Runner
	checkpoints checkpoint.Store
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCheckpoints records a checkpoint after every step so runs can be
// resumed.
func WithCheckpoints(cp checkpoint.Store) Option {
	return func(o *Orchestrator) { o.checkpoints = cp }
}

// WithLogger sets the logger handed to runs.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an orchestrator.
func New(cfg Config, st store.Store, flows *steps.Flows, r *runner.Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg,
		store:  st,
		flows:  flows,
		runner: r,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Trigger validates req, starts the run in the background and returns
// without waiting for it.
func (o *Orchestrator) Trigger(_ context.Context, req TriggerRequest) (Ack, error) {
	kind, err := flowstate.ParseKind(strings.TrimSpace(req.Mode))
	if err != nil {
		return Ack{}, fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return Ack{}, ErrInstructionRequired
	}

	flowID := strings.TrimSpace(req.FlowID)
	if flowID == "" {
		switch kind {
		case flowstate.KindEdit:
			if o.cfg.DefaultEditFlowID == "" {
				return Ack{}, ErrFlowIDRequired
			}
			flowID = o.cfg.DefaultEditFlowID
		default:
			flowID = uuid.New().String()
		}
	}

	flow, err := o.flows.For(kind)
	if err != nil {
		return Ack{}, err
	}

	state := flowstate.New(kind, flowID, req.Instruction)
	state.History = req.History
	state.UserID = req.UserID

	runID := uuid.New().String()
	job := runner.Job{
		RunID:  runID,
		FlowID: flowID,
		Kind:   kind,
		Exec: func(ctx context.Context) error {
			_, err := flow.Run(o.context(ctx, runID, flowID), state, o.runOptions(runID)...)
			return err
		},
	}
	if err := o.runner.Submit(job); err != nil {
		return Ack{}, err
	}

	o.logger.Info("run started",
		slog.String("run_id", runID),
		slog.String("flow_id", flowID),
		slog.String("kind", string(kind)))
	return ack(flowID, runID), nil
}

// Resume continues an interrupted run from its latest checkpoint.
func (o *Orchestrator) Resume(_ context.Context, runID string) (Ack, error) {
	if o.checkpoints == nil {
		return Ack{}, ErrResumeDisabled
	}
	if info, ok := o.runner.Get(runID); ok && info.Status == runner.StatusRunning {
		return Ack{}, fmt.Errorf("%w: %s", ErrRunActive, runID)
	}

	cp, err := o.checkpoints.Latest(runID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return Ack{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Ack{}, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp.Finished() {
		return Ack{}, fmt.Errorf("%w: %s", ErrRunFinished, runID)
	}

	kind, err := flowstate.ParseKind(cp.Kind)
	if err != nil {
		return Ack{}, fmt.Errorf("checkpoint of run %s: %w", runID, err)
	}
	flow, err := o.flows.For(kind)
	if err != nil {
		return Ack{}, err
	}
	flowID := gjson.GetBytes(cp.State, "flow_id").String()

	job := runner.Job{
		RunID:  runID,
		FlowID: flowID,
		Kind:   kind,
		Exec: func(ctx context.Context) error {
			_, err := flow.Resume(o.context(ctx, runID, flowID), o.checkpoints, runID, o.runOptions(runID)...)
			return err
		},
	}
	if err := o.runner.Submit(job); err != nil {
		if errors.Is(err, runner.ErrRunActive) {
			return Ack{}, fmt.Errorf("%w: %s", ErrRunActive, runID)
		}
		return Ack{}, err
	}

	o.logger.Info("run resumed",
		slog.String("run_id", runID),
		slog.String("flow_id", flowID),
		slog.String("next_step", cp.NextStep))
	return ack(flowID, runID), nil
}

func ack(flowID, runID string) Ack {
	return Ack{
		Status:  "started",
		FlowID:  flowID,
		RunID:   runID,
		Channel: notify.Channel(flowID),
	}
}

func (o *Orchestrator) context(ctx context.Context, runID, flowID string) sequence.Context {
	return sequence.NewContext(ctx,
		sequence.WithLogger(o.logger.With(slog.String("flow_id", flowID))),
		sequence.WithContextRunID(runID))
}

func (o *Orchestrator) runOptions(runID string) []sequence.RunOption {
	opts := []sequence.RunOption{
		sequence.WithRunID(runID),
		sequence.WithObservabilityLogger(o.logger),
		sequence.WithMetrics(o.cfg.Metrics),
		sequence.WithTracing(o.cfg.Tracing),
	}
	if o.checkpoints != nil {
		opts = append(opts, sequence.WithCheckpointing(o.checkpoints))
	}
	return opts
}

// Query returns the latest configuration and all datasets of a flow. A
// flow with nothing stored yields an empty project.
func (o *Orchestrator) Query(ctx context.Context, flowID string) (Project, error) {
	doc, _, err := store.Latest(ctx, o.store, flowID)
	if err != nil {
		return Project{}, fmt.Errorf("load config: %w", err)
	}
	data, err := o.store.GetAllDatasets(ctx, flowID)
	if err != nil {
		return Project{}, fmt.Errorf("load datasets: %w", err)
	}
	return Project{FlowID: flowID, Config: doc, MockData: data}, nil
}

// History returns the step log of a flow.
func (o *Orchestrator) History(ctx context.Context, flowID string) ([]store.LogEntry, error) {
	entries, err := o.store.ListLog(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("load step log: %w", err)
	}
	if entries == nil {
		entries = []store.LogEntry{}
	}
	return entries, nil
}

// Run reports the status of a run submitted by this process.
func (o *Orchestrator) Run(runID string) (runner.Info, bool) {
	return o.runner.Get(runID)
}

// Interrupted lists runs whose latest checkpoint still has a step left
// and that are not executing in this process. Each can be resumed.
func (o *Orchestrator) Interrupted(_ context.Context) ([]checkpoint.Info, error) {
	if o.checkpoints == nil {
		return nil, ErrResumeDisabled
	}
	infos, err := o.checkpoints.Interrupted()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	out := make([]checkpoint.Info, 0, len(infos))
	for _, info := range infos {
		if run, ok := o.runner.Get(info.RunID); ok && run.Status == runner.StatusRunning {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// ActiveRuns returns the number of runs still executing.
func (o *Orchestrator) ActiveRuns() int {
	return o.runner.Active()
}

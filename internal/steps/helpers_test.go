package steps_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/appforge/internal/flowstate"
	"github.com/randalmurphal/appforge/internal/generate"
	"github.com/randalmurphal/appforge/internal/notify"
	"github.com/randalmurphal/appforge/internal/notify/notifytest"
	"github.com/randalmurphal/appforge/internal/steps"
	"github.com/randalmurphal/appforge/internal/store"
	"github.com/randalmurphal/appforge/pkg/sequence"
	"github.com/stretchr/testify/require"
)

const flowID = "p1"

// scripted answers with the defaults except where a field is set.
type scripted struct {
	generate.Fallback

	edit      *flowstate.EditIntent
	regen     flowstate.Datasets
	regenCall int
	mu        sync.Mutex
}

func (g *scripted) DetectEdit(ctx context.Context, instruction string) flowstate.EditIntent {
	if g.edit != nil {
		return *g.edit
	}
	return g.Fallback.DetectEdit(ctx, instruction)
}

func (g *scripted) RegenerateData(ctx context.Context, updated flowstate.Document, current flowstate.Datasets, details map[string]any) flowstate.Datasets {
	g.mu.Lock()
	g.regenCall++
	g.mu.Unlock()
	if g.regen != nil {
		return g.regen
	}
	return current
}

func (g *scripted) ApplyPatch(_ context.Context, current flowstate.Document, _ string, _ map[string]any) flowstate.Document {
	out := flowstate.Document{}
	for k, v := range current {
		out[k] = v
	}
	out["patched"] = true
	return out
}

// failingLog is a store whose log write fails for one step.
type failingLog struct {
	store.Store
	step string
}

var errDiskFull = errors.New("disk full")

func (f failingLog) AppendLog(ctx context.Context, e store.LogEntry) error {
	if e.Step == f.step {
		return errDiskFull
	}
	return f.Store.AppendLog(ctx, e)
}

type exported struct {
	mu       sync.Mutex
	versions []int
	datasets []flowstate.Datasets
	err      error
}

var errBucketGone = errors.New("bucket gone")

func (e *exported) ExportConfig(_ context.Context, _ string, version int, _ flowstate.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.versions = append(e.versions, version)
	return nil
}

func (e *exported) ExportDatasets(_ context.Context, _ string, data flowstate.Datasets) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.datasets = append(e.datasets, data)
	return nil
}

type fixture struct {
	deps     *steps.Deps
	store    *store.MemoryStore
	rec      *notifytest.Recorder
	gen      *scripted
	exporter *exported
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hub := notify.NewHub(notify.DefaultHubConfig)
	t.Cleanup(func() { _ = hub.Close() })
	rec := notifytest.NewRecorder()
	hub.Subscribe(flowID, rec)

	f := &fixture{
		store:    store.NewMemoryStore(),
		rec:      rec,
		gen:      &scripted{},
		exporter: &exported{},
	}
	f.deps = &steps.Deps{
		Store:     f.store,
		Notifier:  notify.NewNotifier(hub, notify.URLTemplates{}),
		Generator: f.gen,
		Exporter:  f.exporter,
	}
	return f
}

func (f *fixture) run(t *testing.T, kind flowstate.Kind, instruction string) (flowstate.State, error) {
	t.Helper()
	flows, err := steps.Build(f.deps)
	require.NoError(t, err)
	flow, err := flows.For(kind)
	require.NoError(t, err)

	return flow.Run(sequence.NewContext(context.Background()), flowstate.New(kind, flowID, instruction))
}

// settle waits for the terminal notification of a run so the recorder
// holds everything that was published.
func (f *fixture) settle(t *testing.T, failedStep string) {
	t.Helper()
	require.True(t, f.rec.WaitForTerminal(2*time.Second, failedStep), "no terminal notification")
	// Give trailing deliveries a moment; nothing should follow a terminal one.
	time.Sleep(20 * time.Millisecond)
}

func (f *fixture) seed(t *testing.T) (flowstate.Document, flowstate.Datasets) {
	t.Helper()
	ctx := context.Background()
	doc := flowstate.Document{"pages": map[string]any{"tasks": map[string]any{"title": "Tasks"}}}
	data := flowstate.Datasets{"Task": {{"title": "Write report"}}}

	_, err := f.store.SaveConfig(ctx, flowID, doc)
	require.NoError(t, err)
	require.NoError(t, f.store.SaveDataset(ctx, flowID, "Task", data["Task"]))
	return doc, data
}

package steps_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/randalmurphal/appforge/internal/flowstate"
	"github.com/randalmurphal/appforge/internal/notify"
	"github.com/randalmurphal/appforge/internal/steps"
	"github.com/randalmurphal/appforge/internal/store"
	"github.com/randalmurphal/appforge/pkg/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepTables(t *testing.T) {
	flows, err := steps.Build(&steps.Deps{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		steps.AnalyzeIntent, steps.GenerateUseCases, steps.GeneratePageConfigs,
		steps.GenerateMockData, steps.WriteFiles,
	}, flows.Create.Order())
	assert.Equal(t, []string{
		steps.DetectEditType, steps.LoadCurrentState, steps.ApplyPatch,
		steps.RegenerateAffectedData, steps.SaveUpdates,
	}, flows.Edit.Order())

	next, ok := flows.Create.Successor(steps.WriteFiles)
	assert.True(t, ok)
	assert.Equal(t, sequence.END, next)

	_, err = flows.For("delete")
	assert.ErrorIs(t, err, flowstate.ErrInvalidKind)
}

func TestCreateFlow(t *testing.T) {
	f := newFixture(t)

	final, err := f.run(t, flowstate.KindCreate, "track my daily workouts")
	require.NoError(t, err)
	f.settle(t, "")

	assert.Equal(t, "Task App", final.AppName)
	assert.NotEmpty(t, final.Config)

	assert.Equal(t, []string{
		"status:analyze_intent", "state:analyze_intent",
		"status:generate_use_cases", "state:generate_use_cases",
		"status:generate_page_configs", "state:generate_page_configs",
		"status:generate_mock_data", "state:generate_mock_data",
		"complete:",
	}, f.rec.Sequence())

	complete := f.rec.Of(notify.TypeComplete)[0]
	assert.Equal(t, steps.MessageGenerated, complete.Message)
	assert.Equal(t, final.Config, complete.Config)
	assert.Equal(t, final.Datasets, complete.MockData)
	assert.Equal(t, "http://localhost:5174/?id=p1", complete.AppURL)

	ctx := context.Background()
	version, err := f.store.MaxVersion(ctx, flowID)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	data, err := f.store.GetAllDatasets(ctx, flowID)
	require.NoError(t, err)
	assert.Contains(t, data, "Task")

	log, err := f.store.ListLog(ctx, flowID)
	require.NoError(t, err)
	require.Len(t, log, 5)
	assert.Equal(t, steps.WriteFiles, log[4].Step)
	assert.Equal(t, "Files written successfully", log[4].Payload)
	assert.JSONEq(t, `{"app_name":"Task App","use_case_summary":"track my daily workouts"}`, log[0].Payload)

	assert.Equal(t, []int{1}, f.exporter.versions)
}

func TestCreateFlow_ExportFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	f.exporter.err = errBucketGone
	var buf bytes.Buffer
	f.deps.Logger = slog.New(slog.NewJSONHandler(&buf, nil))

	_, err := f.run(t, flowstate.KindCreate, "track my daily workouts")
	require.NoError(t, err)
	f.settle(t, "")

	require.Len(t, f.rec.Of(notify.TypeComplete), 1)
	out := buf.String()
	assert.Contains(t, out, `"msg":"config export failed"`)
	assert.Contains(t, out, `"msg":"dataset export failed"`)
	assert.Contains(t, out, `"flow_id":"p1"`)
	assert.Contains(t, out, `"step":"write_files"`)
	assert.Contains(t, out, errBucketGone.Error())
}

func TestCreateFlow_FailingStepHalts(t *testing.T) {
	f := newFixture(t)
	f.deps.Store = failingLog{Store: f.store, step: steps.GenerateUseCases}

	final, err := f.run(t, flowstate.KindCreate, "track my daily workouts")
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, steps.GenerateUseCases, sequence.FailedStep(err))
	f.settle(t, steps.GenerateUseCases)

	assert.Equal(t, []string{
		"status:analyze_intent", "state:analyze_intent",
		"status:generate_use_cases", "error:generate_use_cases",
	}, f.rec.Sequence())

	errs := f.rec.Of(notify.TypeError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error, "disk full")

	// The failing step's result is discarded.
	assert.Nil(t, final.Entities)
	assert.Equal(t, "Task App", final.AppName)

	version, err := f.store.MaxVersion(context.Background(), flowID)
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestCreateFlow_LogFailureSuppressesCompletion(t *testing.T) {
	f := newFixture(t)
	f.deps.Store = failingLog{Store: f.store, step: steps.WriteFiles}

	_, err := f.run(t, flowstate.KindCreate, "track my daily workouts")
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, steps.WriteFiles, sequence.FailedStep(err))
	f.settle(t, steps.WriteFiles)

	seq := f.rec.Sequence()
	assert.Equal(t, "error:write_files", seq[len(seq)-1])
	assert.Len(t, f.rec.Of(notify.TypeError), 1)
	assert.Empty(t, f.rec.Of(notify.TypeComplete))
}

func TestEditFlow_SchemaChangeRegeneratesData(t *testing.T) {
	f := newFixture(t)
	doc, _ := f.seed(t)

	f.gen.edit = &flowstate.EditIntent{
		EditTarget: "field", TargetPage: "Tasks", Operation: "add_field",
		Details: map[string]any{"field": "priority"},
	}
	f.gen.regen = flowstate.Datasets{"Task": {{"title": "Write report", "priority": "high"}}}

	final, err := f.run(t, flowstate.KindEdit, "add a priority field")
	require.NoError(t, err)
	f.settle(t, "")

	assert.Equal(t, []string{
		"status:detect_edit_type", "state:detect_edit_type",
		"status:load_current_state", "state:load_current_state",
		"status:apply_patch", "state:apply_patch",
		"status:regenerate_affected_data", "state:regenerate_affected_data",
		"complete:",
	}, f.rec.Sequence())

	assert.Equal(t, doc, final.CurrentConfig)
	assert.Equal(t, true, final.UpdatedConfig["patched"])

	complete := f.rec.Of(notify.TypeComplete)[0]
	assert.Equal(t, steps.MessageUpdated, complete.Message)
	assert.Equal(t, f.gen.regen, complete.MockData)

	ctx := context.Background()
	version, err := f.store.MaxVersion(ctx, flowID)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	data, err := f.store.GetAllDatasets(ctx, flowID)
	require.NoError(t, err)
	assert.Equal(t, "high", data["Task"][0]["priority"])

	log, err := f.store.ListLog(ctx, flowID)
	require.NoError(t, err)
	assert.Len(t, log, 5)
}

func TestEditFlow_NonSchemaChangeKeepsData(t *testing.T) {
	f := newFixture(t)
	_, prior := f.seed(t)

	final, err := f.run(t, flowstate.KindEdit, "rename the dashboard")
	require.NoError(t, err)
	f.settle(t, "")

	for _, step := range f.rec.Sequence() {
		assert.NotContains(t, step, steps.RegenerateAffectedData)
	}
	assert.Zero(t, f.gen.regenCall)
	assert.Nil(t, final.UpdatedData)

	complete := f.rec.Of(notify.TypeComplete)[0]
	assert.Equal(t, prior, complete.MockData)

	log, err := f.store.ListLog(context.Background(), flowID)
	require.NoError(t, err)
	require.Len(t, log, 4)
	for _, e := range log {
		assert.NotEqual(t, steps.RegenerateAffectedData, e.Step)
		assert.Equal(t, store.OutcomeSuccess, e.Outcome)
	}

	data, err := f.store.GetAllDatasets(context.Background(), flowID)
	require.NoError(t, err)
	assert.Equal(t, prior, data)
}

func TestEditFlow_WithoutPriorConfig(t *testing.T) {
	f := newFixture(t)

	final, err := f.run(t, flowstate.KindEdit, "add a chart")
	require.NoError(t, err)
	f.settle(t, "")

	assert.NotNil(t, final.CurrentConfig)
	assert.Empty(t, final.Datasets)
	assert.Equal(t, flowstate.Datasets{}, f.rec.Of(notify.TypeComplete)[0].MockData)
}

func TestRunFrom_MissingPrerequisite(t *testing.T) {
	f := newFixture(t)
	flow, err := steps.CreateFlow(f.deps)
	require.NoError(t, err)

	_, err = flow.RunFrom(sequence.NewContext(context.Background()),
		flowstate.New(flowstate.KindCreate, flowID, "x"), steps.GeneratePageConfigs)

	var prereq *sequence.PrerequisiteError
	require.ErrorAs(t, err, &prereq)
	assert.Equal(t, steps.GeneratePageConfigs, prereq.Step)
	assert.ElementsMatch(t, []string{flowstate.FieldEntities, flowstate.FieldPages}, prereq.Missing)
	assert.Empty(t, f.rec.Messages())
}

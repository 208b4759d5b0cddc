package generate_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/randalmurphal/appforge/internal/flowstate"
	"github.com/randalmurphal/appforge/internal/generate"
	"github.com/randalmurphal/appforge/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func withAnswer(answer string) *generate.LLMGenerator {
	return generate.NewLLMGenerator(llm.NewMockClient(answer))
}

func failing() *generate.LLMGenerator {
	return generate.NewLLMGenerator(llm.NewMockClient("").WithError(errors.New("connection refused")))
}

func TestAnalyzeIntent(t *testing.T) {
	got := withAnswer("```json\n{\"app_name\":\"Gym Log\",\"use_case_summary\":\"Track workouts\"}\n```").
		AnalyzeIntent(ctx, "a gym app")
	assert.Equal(t, flowstate.Intent{AppName: "Gym Log", Summary: "Track workouts"}, got)

	assert.Equal(t, generate.DefaultIntent("a gym app"), failing().AnalyzeIntent(ctx, "a gym app"))
	assert.Equal(t, generate.DefaultIntent("a gym app"), withAnswer("sorry").AnalyzeIntent(ctx, "a gym app"))

	partial := withAnswer(`{"app_name":"Gym"}`).AnalyzeIntent(ctx, "a gym app")
	assert.Equal(t, "a gym app", partial.Summary)
}

func TestUseCases(t *testing.T) {
	got := withAnswer(`{"entities":[{"name":"Run","fields":[{"name":"km","type":"number"}]}],"pages":[{"title":"Runs","path":"/runs"}]}`).
		UseCases(ctx, "track runs")
	require.Len(t, got.Entities, 1)
	assert.Equal(t, "Run", got.Entities[0].Name)
	assert.Equal(t, "/runs", got.Pages[0].Path)

	assert.Equal(t, generate.DefaultUseCases(), failing().UseCases(ctx, "x"))
	assert.Equal(t, generate.DefaultUseCases(), withAnswer(`{}`).UseCases(ctx, "x"))
	assert.Equal(t, generate.DefaultUseCases(), withAnswer(`{"entities":"nope"}`).UseCases(ctx, "x"))

	onlyPages := withAnswer(`{"pages":[{"title":"Home"}]}`).UseCases(ctx, "x")
	assert.NotNil(t, onlyPages.Entities)
	assert.Empty(t, onlyPages.Entities)
}

func TestPageConfigs(t *testing.T) {
	uc := generate.DefaultUseCases()

	got := withAnswer(`{"pages":{"home":{"title":"Home","zones":{}}}}`).PageConfigs(ctx, uc.Entities, uc.Pages)
	assert.Contains(t, got["pages"], "home")

	want := generate.DefaultPageConfig(uc.Entities, uc.Pages)
	assert.Equal(t, want, withAnswer(`{"pages":{}}`).PageConfigs(ctx, uc.Entities, uc.Pages))
	assert.Equal(t, want, withAnswer(`{"layout":"grid"}`).PageConfigs(ctx, uc.Entities, uc.Pages))
	assert.Equal(t, want, failing().PageConfigs(ctx, uc.Entities, uc.Pages))
}

func TestPageConfigs_PromptCarriesEntitiesAndPages(t *testing.T) {
	mock := llm.NewMockClient(`{"pages":{"a":{}}}`)
	uc := generate.DefaultUseCases()
	generate.NewLLMGenerator(mock, generate.WithModel("gpt-4o")).PageConfigs(ctx, uc.Entities, uc.Pages)

	call := mock.LastCall()
	require.NotNil(t, call)
	assert.Equal(t, "gpt-4o", call.Model)
	assert.True(t, call.JSON)
	assert.True(t, strings.HasPrefix(call.Messages[0].Content, `Entities: [{"name":"Task"`))
	assert.Contains(t, call.Messages[0].Content, "\nPages: [")
}

func TestMockData(t *testing.T) {
	got := withAnswer(`{"Task":[{"title":"a"},{"title":"b"}]}`).MockData(ctx, nil)
	assert.Equal(t, 2, got.Count())

	assert.Equal(t, generate.DefaultDatasets(), failing().MockData(ctx, nil))
	assert.Equal(t, generate.DefaultDatasets(), withAnswer(`{"Task":"many"}`).MockData(ctx, nil))
}

func TestDetectEdit(t *testing.T) {
	got := withAnswer(`{"edit_target":"field","target_page":"Tasks","operation":"add_field","modification_details":{"field":"priority"}}`).
		DetectEdit(ctx, "add priority")
	assert.Equal(t, "add_field", got.Operation)
	assert.Equal(t, "priority", got.Details["field"])

	assert.Equal(t, generate.DefaultEditIntent("add priority"), failing().DetectEdit(ctx, "add priority"))
}

func TestDetectEdit_LooseAnswerKeepsOperation(t *testing.T) {
	got := withAnswer(`{"edit_target":"field","target_page":"Tasks","target_component":"table",` +
		`"operation":"add_field","modification_details":"add a priority field"}`).
		DetectEdit(ctx, "add priority")
	assert.Equal(t, flowstate.EditIntent{
		EditTarget:      "field",
		TargetPage:      "Tasks",
		TargetComponent: "table",
		Operation:       "add_field",
		Details:         map[string]any{"description": "add a priority field"},
	}, got)
	assert.True(t, flowstate.NeedsDataRegeneration(&got))

	partial := withAnswer(`{"operation":"remove_entity","modification_details":null}`).
		DetectEdit(ctx, "drop notes")
	def := generate.DefaultEditIntent("drop notes")
	assert.Equal(t, "remove_entity", partial.Operation)
	assert.Equal(t, def.TargetPage, partial.TargetPage)
	assert.Equal(t, def.Details, partial.Details)

	list := withAnswer(`{"operation":"add_entity","modification_details":["Tag"]}`).
		DetectEdit(ctx, "add tags")
	assert.Equal(t, []any{"Tag"}, list.Details["description"])
}

func TestApplyPatchAndRegenerate_EchoOnFailure(t *testing.T) {
	current := flowstate.Document{"pages": map[string]any{"home": map[string]any{}}}
	data := flowstate.Datasets{"Task": {{"title": "a"}}}

	assert.Equal(t, current, failing().ApplyPatch(ctx, current, "component", nil))
	assert.Equal(t, data, failing().RegenerateData(ctx, current, data, nil))
	assert.Equal(t, data, withAnswer(`not json`).RegenerateData(ctx, current, data, nil))

	patched := withAnswer(`{"pages":{"home":{"title":"Home"}}}`).ApplyPatch(ctx, current, "component", map[string]any{"title": "Home"})
	assert.Equal(t, "Home", patched["pages"].(map[string]any)["home"].(map[string]any)["title"])
}

func TestFallback(t *testing.T) {
	var g generate.Generator = generate.Fallback{}
	assert.Equal(t, generate.DefaultIntent("x"), g.AnalyzeIntent(ctx, "x"))
	current := flowstate.Document{"a": 1.0}
	assert.Equal(t, current, g.ApplyPatch(ctx, current, "", nil))
}

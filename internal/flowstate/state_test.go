package flowstate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("create")
	require.NoError(t, err)
	assert.Equal(t, KindCreate, k)

	k, err = ParseKind("edit")
	require.NoError(t, err)
	assert.Equal(t, KindEdit, k)

	_, err = ParseKind("delete")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestHas(t *testing.T) {
	s := New(KindCreate, "p1", "track workouts")
	assert.True(t, s.Has(FieldInstruction))
	assert.False(t, s.Has(FieldSummary))
	assert.False(t, s.Has(FieldEntities))
	assert.False(t, s.Has("unknown"))

	s.Summary = "workouts"
	s.Entities = []Entity{}
	s.Config = Document{}
	assert.True(t, s.Has(FieldSummary))
	assert.True(t, s.Has(FieldEntities), "empty but set counts as populated")
	assert.True(t, s.Has(FieldConfig))
}

func TestHas_SurvivesJSONRoundTrip(t *testing.T) {
	s := New(KindEdit, "p1", "add a field")
	s.Modification = &EditIntent{Operation: "add_field"}
	s.CurrentConfig = Document{}
	s.Datasets = Datasets{}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var restored State
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.True(t, restored.Has(FieldModification))
	assert.True(t, restored.Has(FieldCurrentConfig))
	assert.True(t, restored.Has(FieldDatasets))
	assert.False(t, restored.Has(FieldUpdatedConfig))
	assert.Equal(t, KindEdit, restored.Kind)
}

func TestNeedsDataRegeneration(t *testing.T) {
	for _, op := range []string{"add_field", "remove_field", "modify_field_type", "add_entity", "remove_entity"} {
		assert.True(t, NeedsDataRegeneration(&EditIntent{Operation: op}), op)
	}
	for _, op := range []string{"update", "add", "remove", ""} {
		assert.False(t, NeedsDataRegeneration(&EditIntent{Operation: op}), op)
	}
	assert.False(t, NeedsDataRegeneration(nil))
}

func TestNeedsDataRegeneration_IsPure(t *testing.T) {
	mod := &EditIntent{Operation: "add_field", Details: map[string]any{"field": "due"}}
	first := NeedsDataRegeneration(mod)
	second := NeedsDataRegeneration(mod)
	assert.Equal(t, first, second)
	assert.Equal(t, "add_field", mod.Operation)
}

func TestResultDatasets(t *testing.T) {
	prior := Datasets{"Task": {{"title": "a"}}}
	s := State{Datasets: prior}
	assert.Equal(t, prior, s.ResultDatasets())

	s.UpdatedData = Datasets{"Task": {{"title": "b"}}}
	assert.Equal(t, s.UpdatedData, s.ResultDatasets())
}

func TestDatasetsCount(t *testing.T) {
	d := Datasets{"A": {{}, {}}, "B": {{}}}
	assert.Equal(t, 3, d.Count())
}

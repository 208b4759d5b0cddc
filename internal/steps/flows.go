package steps

import (
	"fmt"

	"github.com/randalmurphal/appforge/internal/flowstate"
	"github.com/randalmurphal/appforge/pkg/sequence"
)

// Flow is a compiled step sequence over the flow state.
type Flow = sequence.Compiled[flowstate.State]

// CreateFlow compiles the create sequence:
// analyze_intent → generate_use_cases → generate_page_configs →
// generate_mock_data → write_files.
func CreateFlow(d *Deps) (*Flow, error) {
	seq := sequence.New[flowstate.State](string(flowstate.KindCreate)).
		AddStep(sequence.Step[flowstate.State]{
			Name:     AnalyzeIntent,
			Requires: []string{flowstate.FieldInstruction},
			Run:      d.analyzeIntent,
		}).
		AddStep(sequence.Step[flowstate.State]{
			Name:     GenerateUseCases,
			Requires: []string{flowstate.FieldSummary},
			Run:      d.generateUseCases,
		}).
		AddStep(sequence.Step[flowstate.State]{
			Name:     GeneratePageConfigs,
			Requires: []string{flowstate.FieldEntities, flowstate.FieldPages},
			Run:      d.generatePageConfigs,
		}).
		AddStep(sequence.Step[flowstate.State]{
			Name:     GenerateMockData,
			Requires: []string{flowstate.FieldEntities},
			Run:      d.generateMockData,
		}).
		AddStep(sequence.Step[flowstate.State]{
			Name:     WriteFiles,
			Requires: []string{flowstate.FieldConfig, flowstate.FieldDatasets},
			Run:      d.writeFiles,
		}).
		Chain(AnalyzeIntent, GenerateUseCases, GeneratePageConfigs, GenerateMockData, WriteFiles)

	flow, err := seq.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile create flow: %w", err)
	}
	return flow, nil
}

// EditFlow compiles the edit sequence:
// detect_edit_type → load_current_state → apply_patch →
// regenerate_affected_data → save_updates.
func EditFlow(d *Deps) (*Flow, error) {
	seq := sequence.New[flowstate.State](string(flowstate.KindEdit)).
		AddStep(sequence.Step[flowstate.State]{
			Name:     DetectEditType,
			Requires: []string{flowstate.FieldInstruction},
			Run:      d.detectEditType,
		}).
		AddStep(sequence.Step[flowstate.State]{
			Name:     LoadCurrentState,
			Requires: []string{flowstate.FieldModification},
			Run:      d.loadCurrentState,
		}).
		AddStep(sequence.Step[flowstate.State]{
			Name:     ApplyPatch,
			Requires: []string{flowstate.FieldCurrentConfig, flowstate.FieldModification},
			Run:      d.applyPatch,
		}).
		AddStep(sequence.Step[flowstate.State]{
			Name:     RegenerateAffectedData,
			Requires: []string{flowstate.FieldUpdatedConfig, flowstate.FieldModification},
			Run:      d.regenerateAffectedData,
		}).
		AddStep(sequence.Step[flowstate.State]{
			Name:     SaveUpdates,
			Requires: []string{flowstate.FieldUpdatedConfig},
			Run:      d.saveUpdates,
		}).
		Chain(DetectEditType, LoadCurrentState, ApplyPatch, RegenerateAffectedData, SaveUpdates)

	flow, err := seq.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile edit flow: %w", err)
	}
	return flow, nil
}

// Flows holds both compiled sequences.
type Flows struct {
	Create *Flow
	Edit   *Flow
}

// Build compiles both sequences.
func Build(d *Deps) (*Flows, error) {
	create, err := CreateFlow(d)
	if err != nil {
		return nil, err
	}
	edit, err := EditFlow(d)
	if err != nil {
		return nil, err
	}
	return &Flows{Create: create, Edit: edit}, nil
}

// For returns the sequence of a flow kind.
func (f *Flows) For(kind flowstate.Kind) (*Flow, error) {
	switch kind {
	case flowstate.KindCreate:
		return f.Create, nil
	case flowstate.KindEdit:
		return f.Edit, nil
	default:
		return nil, fmt.Errorf("%w: %q", flowstate.ErrInvalidKind, kind)
	}
}

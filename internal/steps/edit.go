package steps

import (
	"fmt"
	"log/slog"

	"github.com/randalmurphal/appforge/internal/flowstate"
	"github.com/randalmurphal/appforge/internal/store"
	"github.com/randalmurphal/appforge/pkg/sequence"
)

func (d *Deps) detectEditType(ctx sequence.Context, s flowstate.State) (flowstate.State, error) {
	intent, err := announce(ctx, d, s.FlowID, DetectEditType, "Analyzing edit request...",
		func() (flowstate.EditIntent, error) {
			return d.Generator.DetectEdit(ctx, s.Instruction), nil
		})
	if err != nil {
		return s, err
	}
	s.EditTarget = intent.EditTarget
	s.Modification = &intent
	return s, nil
}

// loadedState is the result announced by load_current_state.
type loadedState struct {
	Config   flowstate.Document `json:"config"`
	MockData flowstate.Datasets `json:"mockData"`
}

func (d *Deps) loadCurrentState(ctx sequence.Context, s flowstate.State) (flowstate.State, error) {
	loaded, err := announce(ctx, d, s.FlowID, LoadCurrentState, "Loading current configuration...",
		func() (loadedState, error) {
			doc, _, err := store.Latest(ctx, d.Store, s.FlowID)
			if err != nil {
				return loadedState{}, fmt.Errorf("load config: %w", err)
			}
			data, err := d.Store.GetAllDatasets(ctx, s.FlowID)
			if err != nil {
				return loadedState{}, fmt.Errorf("load datasets: %w", err)
			}
			return loadedState{Config: doc, MockData: data}, nil
		})
	if err != nil {
		return s, err
	}
	s.CurrentConfig = loaded.Config
	s.Datasets = loaded.MockData
	return s, nil
}

func (d *Deps) applyPatch(ctx sequence.Context, s flowstate.State) (flowstate.State, error) {
	doc, err := announce(ctx, d, s.FlowID, ApplyPatch, "Applying requested changes...",
		func() (flowstate.Document, error) {
			return d.Generator.ApplyPatch(ctx, s.CurrentConfig, s.EditTarget, modificationMap(s.Modification)), nil
		})
	if err != nil {
		return s, err
	}
	s.UpdatedConfig = doc
	return s, nil
}

// regenerateAffectedData regenerates the datasets only when the edit
// changes the data schema. Otherwise the state passes through untouched
// and nothing is announced or logged.
func (d *Deps) regenerateAffectedData(ctx sequence.Context, s flowstate.State) (flowstate.State, error) {
	if !flowstate.NeedsDataRegeneration(s.Modification) {
		ctx.Logger().Debug("schema unchanged, keeping datasets")
		return s, nil
	}

	data, err := announce(ctx, d, s.FlowID, RegenerateAffectedData, "Updating mock data for schema changes...",
		func() (flowstate.Datasets, error) {
			return d.Generator.RegenerateData(ctx, s.UpdatedConfig, s.Datasets, modificationMap(s.Modification)), nil
		})
	if err != nil {
		return s, err
	}
	s.UpdatedData = data
	return s, nil
}

// saveUpdates persists the updated configuration as a new version and the
// regenerated datasets when there are any, then announces completion.
func (d *Deps) saveUpdates(ctx sequence.Context, s flowstate.State) (flowstate.State, error) {
	version, err := d.Store.SaveConfig(ctx, s.FlowID, s.UpdatedConfig)
	if err != nil {
		return s, d.fail(s.FlowID, SaveUpdates, fmt.Errorf("save config: %w", err))
	}
	for name, records := range s.UpdatedData {
		if err := d.Store.SaveDataset(ctx, s.FlowID, name, records); err != nil {
			return s, d.fail(s.FlowID, SaveUpdates, fmt.Errorf("save dataset %s: %w", name, err))
		}
	}

	result := s.ResultDatasets()
	d.export(ctx, s.FlowID, version, s.UpdatedConfig, s.UpdatedData)
	if err := d.record(ctx, s.FlowID, SaveUpdates, "Updates saved successfully"); err != nil {
		return s, d.fail(s.FlowID, SaveUpdates, err)
	}
	d.Notifier.Complete(s.FlowID, MessageUpdated, s.UpdatedConfig, result)

	ctx.Logger().Info("application updated",
		slog.Int("version", version),
		slog.Bool("datasets_regenerated", len(s.UpdatedData) > 0))
	return s, nil
}

// modificationMap is the edit intent in the shape the generation prompts
// expect: the full intent including its details.
func modificationMap(mod *flowstate.EditIntent) map[string]any {
	if mod == nil {
		return map[string]any{}
	}
	out := map[string]any{
		"edit_target":      mod.EditTarget,
		"target_page":      mod.TargetPage,
		"target_component": mod.TargetComponent,
		"operation":        mod.Operation,
	}
	if mod.Details != nil {
		out["modification_details"] = mod.Details
	}
	return out
}

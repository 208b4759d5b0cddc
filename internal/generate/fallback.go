package generate

import (
	"context"

	"github.com/randalmurphal/appforge/internal/flowstate"
)

// Fallback is a Generator that always answers with the defaults, without
// calling a model.
type Fallback struct{}

var _ Generator = Fallback{}

func (Fallback) AnalyzeIntent(_ context.Context, instruction string) flowstate.Intent {
	return DefaultIntent(instruction)
}

func (Fallback) UseCases(context.Context, string) flowstate.UseCases {
	return DefaultUseCases()
}

func (Fallback) PageConfigs(_ context.Context, entities []flowstate.Entity, pages []flowstate.Page) flowstate.Document {
	return DefaultPageConfig(entities, pages)
}

func (Fallback) MockData(context.Context, []flowstate.Entity) flowstate.Datasets {
	return DefaultDatasets()
}

func (Fallback) DetectEdit(_ context.Context, instruction string) flowstate.EditIntent {
	return DefaultEditIntent(instruction)
}

func (Fallback) ApplyPatch(_ context.Context, current flowstate.Document, _ string, _ map[string]any) flowstate.Document {
	return current
}

func (Fallback) RegenerateData(_ context.Context, _ flowstate.Document, current flowstate.Datasets, _ map[string]any) flowstate.Datasets {
	return current
}

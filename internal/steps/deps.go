// Package steps implements the create and edit flows: each step function
// announces its progress, calls the generation capability, records the
// result on the flow state and logs its outcome.
package steps

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/appforge/internal/flowstate"
	"github.com/randalmurphal/appforge/internal/generate"
	"github.com/randalmurphal/appforge/internal/store"
)

// Step names.
const (
	AnalyzeIntent       = "analyze_intent"
	GenerateUseCases    = "generate_use_cases"
	GeneratePageConfigs = "generate_page_configs"
	GenerateMockData    = "generate_mock_data"
	WriteFiles          = "write_files"

	DetectEditType         = "detect_edit_type"
	LoadCurrentState       = "load_current_state"
	ApplyPatch             = "apply_patch"
	RegenerateAffectedData = "regenerate_affected_data"
	SaveUpdates            = "save_updates"
)

// Completion messages.
const (
	MessageGenerated = "App successfully generated"
	MessageUpdated   = "Updates successfully applied"
)

// Announcer publishes progress for a flow. *notify.Notifier implements it.
type Announcer interface {
	Status(flowID, step, message string)
	State(flowID, step string, data any)
	Error(flowID, step, message string)
	Complete(flowID, message string, config, datasets any)
}

// Exporter mirrors persisted artifacts to an external location.
type Exporter interface {
	ExportConfig(ctx context.Context, flowID string, version int, doc flowstate.Document) error
	ExportDatasets(ctx context.Context, flowID string, data flowstate.Datasets) error
}

// Deps carries what the step functions need.
type Deps struct {
	Store     store.Store
	Notifier  Announcer
	Generator generate.Generator

	// Exporter is optional. Export failures are logged and do not fail
	// the step.
	Exporter Exporter

	Logger *slog.Logger
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

package steps

import (
	"fmt"
	"log/slog"

	"github.com/randalmurphal/appforge/internal/flowstate"
	"github.com/randalmurphal/appforge/pkg/sequence"
)

func (d *Deps) analyzeIntent(ctx sequence.Context, s flowstate.State) (flowstate.State, error) {
	intent, err := announce(ctx, d, s.FlowID, AnalyzeIntent, "Analyzing user intent...",
		func() (flowstate.Intent, error) {
			return d.Generator.AnalyzeIntent(ctx, s.Instruction), nil
		})
	if err != nil {
		return s, err
	}
	s.AppName = intent.AppName
	s.Summary = intent.Summary
	return s, nil
}

func (d *Deps) generateUseCases(ctx sequence.Context, s flowstate.State) (flowstate.State, error) {
	uc, err := announce(ctx, d, s.FlowID, GenerateUseCases, "Generating use cases...",
		func() (flowstate.UseCases, error) {
			return d.Generator.UseCases(ctx, s.Summary), nil
		})
	if err != nil {
		return s, err
	}
	s.Entities = uc.Entities
	s.Pages = uc.Pages
	return s, nil
}

func (d *Deps) generatePageConfigs(ctx sequence.Context, s flowstate.State) (flowstate.State, error) {
	doc, err := announce(ctx, d, s.FlowID, GeneratePageConfigs, "Generating page configurations...",
		func() (flowstate.Document, error) {
			return d.Generator.PageConfigs(ctx, s.Entities, s.Pages), nil
		})
	if err != nil {
		return s, err
	}
	s.Config = doc
	return s, nil
}

func (d *Deps) generateMockData(ctx sequence.Context, s flowstate.State) (flowstate.State, error) {
	data, err := announce(ctx, d, s.FlowID, GenerateMockData, "Generating mock data...",
		func() (flowstate.Datasets, error) {
			return d.Generator.MockData(ctx, s.Entities), nil
		})
	if err != nil {
		return s, err
	}
	s.Datasets = data
	return s, nil
}

// writeFiles persists the generated configuration as a new version and
// every dataset, then announces completion.
func (d *Deps) writeFiles(ctx sequence.Context, s flowstate.State) (flowstate.State, error) {
	version, err := d.Store.SaveConfig(ctx, s.FlowID, s.Config)
	if err != nil {
		return s, d.fail(s.FlowID, WriteFiles, fmt.Errorf("save config: %w", err))
	}
	for name, records := range s.Datasets {
		if err := d.Store.SaveDataset(ctx, s.FlowID, name, records); err != nil {
			return s, d.fail(s.FlowID, WriteFiles, fmt.Errorf("save dataset %s: %w", name, err))
		}
	}

	d.export(ctx, s.FlowID, version, s.Config, s.Datasets)
	if err := d.record(ctx, s.FlowID, WriteFiles, "Files written successfully"); err != nil {
		return s, d.fail(s.FlowID, WriteFiles, err)
	}
	d.Notifier.Complete(s.FlowID, MessageGenerated, s.Config, s.Datasets)

	ctx.Logger().Info("application generated",
		slog.Int("version", version),
		slog.Int("datasets", len(s.Datasets)),
		slog.Int("records", s.Datasets.Count()))
	return s, nil
}

func (d *Deps) export(ctx sequence.Context, flowID string, version int, doc flowstate.Document, data flowstate.Datasets) {
	if d.Exporter == nil {
		return
	}
	logger := d.logger().With(
		slog.String("flow_id", flowID),
		slog.String("step", ctx.Step()),
		slog.Int("version", version))
	if err := d.Exporter.ExportConfig(ctx, flowID, version, doc); err != nil {
		logger.Warn("config export failed", slog.String("error", err.Error()))
	}
	if len(data) == 0 {
		return
	}
	if err := d.Exporter.ExportDatasets(ctx, flowID, data); err != nil {
		logger.Warn("dataset export failed", slog.String("error", err.Error()))
	}
}

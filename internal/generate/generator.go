// Package generate turns instructions into intents, entities, UI
// configurations and datasets. Generation never fails: when the model is
// unreachable or answers with something unusable, a deterministic default
// is returned instead.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/appforge/internal/flowstate"
	"github.com/randalmurphal/appforge/internal/llm"
	"github.com/tidwall/gjson"
)

// Generator is the generation capability used by the flow steps.
type Generator interface {
	AnalyzeIntent(ctx context.Context, instruction string) flowstate.Intent
	UseCases(ctx context.Context, summary string) flowstate.UseCases
	PageConfigs(ctx context.Context, entities []flowstate.Entity, pages []flowstate.Page) flowstate.Document
	MockData(ctx context.Context, entities []flowstate.Entity) flowstate.Datasets
	DetectEdit(ctx context.Context, instruction string) flowstate.EditIntent
	ApplyPatch(ctx context.Context, current flowstate.Document, target string, details map[string]any) flowstate.Document
	RegenerateData(ctx context.Context, updated flowstate.Document, current flowstate.Datasets, details map[string]any) flowstate.Datasets
}

var _ Generator = (*LLMGenerator)(nil)

// LLMGenerator implements Generator on top of an llm.Client.
type LLMGenerator struct {
	client llm.Client
	model  string
	logger *slog.Logger
}

// Option configures LLMGenerator.
type Option func(*LLMGenerator)

// WithModel overrides the client's default model.
func WithModel(model string) Option {
	return func(g *LLMGenerator) { g.model = model }
}

// WithLogger sets the logger used to report masked failures.
func WithLogger(logger *slog.Logger) Option {
	return func(g *LLMGenerator) { g.logger = logger }
}

// NewLLMGenerator creates a generator.
func NewLLMGenerator(client llm.Client, opts ...Option) *LLMGenerator {
	g := &LLMGenerator{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// complete asks the model and returns its JSON object answer. The second
// result is false when the call failed or the answer held no object; the
// failure is logged here so callers only pick their default.
func (g *LLMGenerator) complete(ctx context.Context, op, system, user string) (string, bool) {
	req := llm.UserPrompt(system, user)
	req.Model = g.model
	req.JSON = true

	start := time.Now()
	resp, err := g.client.Complete(ctx, req)
	if err != nil {
		g.logger.Warn("generation failed, using default",
			slog.String("op", op),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return "", false
	}

	content, ok := llm.ExtractJSON(resp.Content)
	if !ok {
		g.logger.Warn("generation returned no JSON object, using default",
			slog.String("op", op),
			slog.Int("content_length", len(resp.Content)))
		return "", false
	}

	g.logger.Debug("generation complete",
		slog.String("op", op),
		slog.Duration("duration", time.Since(start)),
		slog.Int("total_tokens", resp.Usage.TotalTokens))
	return content, true
}

func decode[T any](g *LLMGenerator, op, content string, out *T) bool {
	if err := json.Unmarshal([]byte(content), out); err != nil {
		g.logger.Warn("generation answer has the wrong shape, using default",
			slog.String("op", op),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

func encode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// AnalyzeIntent extracts the app name and a use case summary.
func (g *LLMGenerator) AnalyzeIntent(ctx context.Context, instruction string) flowstate.Intent {
	const op = "analyze_intent"
	content, ok := g.complete(ctx, op, promptAnalyzeIntent, instruction)
	if !ok {
		return DefaultIntent(instruction)
	}

	var intent flowstate.Intent
	if !decode(g, op, content, &intent) {
		return DefaultIntent(instruction)
	}
	if intent.AppName == "" {
		intent.AppName = DefaultIntent(instruction).AppName
	}
	if intent.Summary == "" {
		intent.Summary = instruction
	}
	return intent
}

// UseCases derives entities and pages from a summary.
func (g *LLMGenerator) UseCases(ctx context.Context, summary string) flowstate.UseCases {
	const op = "generate_use_cases"
	content, ok := g.complete(ctx, op, promptUseCases, summary)
	if !ok {
		return DefaultUseCases()
	}

	var uc flowstate.UseCases
	if !decode(g, op, content, &uc) {
		return DefaultUseCases()
	}
	if len(uc.Entities) == 0 && len(uc.Pages) == 0 {
		return DefaultUseCases()
	}
	if uc.Entities == nil {
		uc.Entities = []flowstate.Entity{}
	}
	if uc.Pages == nil {
		uc.Pages = []flowstate.Page{}
	}
	return uc
}

// PageConfigs builds the UI configuration. An answer without pages is
// replaced by DefaultPageConfig.
func (g *LLMGenerator) PageConfigs(ctx context.Context, entities []flowstate.Entity, pages []flowstate.Page) flowstate.Document {
	const op = "generate_page_configs"
	user := fmt.Sprintf("Entities: %s\nPages: %s", encode(entities), encode(pages))
	content, ok := g.complete(ctx, op, promptPageConfigs, user)
	if !ok {
		return DefaultPageConfig(entities, pages)
	}

	p := gjson.Get(content, "pages")
	if !p.IsObject() || len(p.Map()) == 0 {
		g.logger.Warn("generation returned no pages, using default", slog.String("op", op))
		return DefaultPageConfig(entities, pages)
	}

	var doc flowstate.Document
	if !decode(g, op, content, &doc) {
		return DefaultPageConfig(entities, pages)
	}
	return doc
}

// MockData generates records for every entity.
func (g *LLMGenerator) MockData(ctx context.Context, entities []flowstate.Entity) flowstate.Datasets {
	const op = "generate_mock_data"
	content, ok := g.complete(ctx, op, promptMockData, encode(entities))
	if !ok {
		return DefaultDatasets()
	}

	var data flowstate.Datasets
	if !decode(g, op, content, &data) {
		return DefaultDatasets()
	}
	return data
}

// DetectEdit classifies an edit request. Fields are read one by one so a
// loosely shaped answer keeps its operation; missing fields take the
// default's values and non-object details are kept as a description.
func (g *LLMGenerator) DetectEdit(ctx context.Context, instruction string) flowstate.EditIntent {
	const op = "detect_edit_type"
	def := DefaultEditIntent(instruction)
	content, ok := g.complete(ctx, op, promptDetectEdit, instruction)
	if !ok {
		return def
	}

	answer := gjson.Parse(content)
	field := func(key, fallback string) string {
		if v := strings.TrimSpace(answer.Get(key).String()); v != "" {
			return v
		}
		return fallback
	}
	intent := flowstate.EditIntent{
		EditTarget:      field("edit_target", def.EditTarget),
		TargetPage:      field("target_page", def.TargetPage),
		TargetComponent: field("target_component", def.TargetComponent),
		Operation:       field("operation", def.Operation),
		Details:         def.Details,
	}

	switch details := answer.Get("modification_details"); {
	case details.IsObject():
		if m, ok := details.Value().(map[string]any); ok {
			intent.Details = m
		}
	case details.Exists() && details.Type != gjson.Null:
		intent.Details = map[string]any{"description": details.Value()}
	}
	return intent
}

// ApplyPatch returns the configuration with the edit applied, or current
// unchanged when no usable answer is produced.
func (g *LLMGenerator) ApplyPatch(ctx context.Context, current flowstate.Document, target string, details map[string]any) flowstate.Document {
	const op = "apply_patch"
	user := fmt.Sprintf("Current config: %s\nEdit target: %s\nModifications: %s",
		encode(current), target, encode(details))
	content, ok := g.complete(ctx, op, promptApplyPatch, user)
	if !ok {
		return current
	}

	var doc flowstate.Document
	if !decode(g, op, content, &doc) {
		return current
	}
	return doc
}

// RegenerateData returns datasets matching the updated configuration, or
// current unchanged when no usable answer is produced.
func (g *LLMGenerator) RegenerateData(ctx context.Context, updated flowstate.Document, current flowstate.Datasets, details map[string]any) flowstate.Datasets {
	const op = "regenerate_affected_data"
	user := fmt.Sprintf("Updated config: %s\nCurrent mock data: %s\nModifications: %s",
		encode(updated), encode(current), encode(details))
	content, ok := g.complete(ctx, op, promptRegenerateData, user)
	if !ok {
		return current
	}

	var data flowstate.Datasets
	if !decode(g, op, content, &data) {
		return current
	}
	return data
}

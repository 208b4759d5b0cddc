package notify

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

type digester func(data gjson.Result) Formatted

var digesters = map[string]digester{
	"analyze_intent":           digestIntent,
	"analyze_user_intent":      digestIntent,
	"generate_use_cases":       digestUseCases,
	"generate_page_configs":    digestPageConfigs,
	"apply_patch":              digestPageConfigs,
	"generate_mock_data":       digestDatasets("Generated"),
	"regenerate_affected_data": digestDatasets("Regenerated"),
	"detect_edit_type":         digestEditIntent,
	"load_current_state":       digestLoadedState,
}

// Digest summarizes a step result for display. Steps without a
// summarizer get an empty digest. Digest has no side effects.
func Digest(step string, data any) Formatted {
	fn, ok := digesters[step]
	if !ok {
		return emptyDigest()
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return emptyDigest()
	}
	return fn(gjson.ParseBytes(raw))
}

func emptyDigest() Formatted {
	return Formatted{Details: map[string]any{}}
}

func str(r gjson.Result, path, fallback string) string {
	v := r.Get(path)
	if !v.Exists() || v.String() == "" {
		return fallback
	}
	return v.String()
}

func digestIntent(data gjson.Result) Formatted {
	name := str(data, "app_name", "Unknown")
	return Formatted{
		Summary: "App: " + name,
		Details: map[string]any{
			"App Name": name,
			"Use Case": str(data, "use_case_summary", "No summary provided"),
		},
	}
}

func digestUseCases(data gjson.Result) Formatted {
	entities := data.Get("entities").Array()
	pages := data.Get("pages").Array()

	entitySummary := make([]string, 0, len(entities))
	for _, e := range entities {
		entitySummary = append(entitySummary,
			fmt.Sprintf("%s (%d fields)", str(e, "name", "Unknown"), len(e.Get("fields").Array())))
	}

	pageSummary := make([]string, 0, len(pages))
	for _, p := range pages {
		pageSummary = append(pageSummary,
			fmt.Sprintf("%s - %s", str(p, "title", "Unknown"), str(p, "purpose", "No purpose")))
	}

	return Formatted{
		Summary: fmt.Sprintf("Generated %d entities and %d pages", len(entities), len(pages)),
		Details: map[string]any{
			"Entities": entitySummary,
			"Pages":    pageSummary,
		},
	}
}

func countMembers(r gjson.Result) int {
	n := 0
	r.ForEach(func(_, _ gjson.Result) bool {
		n++
		return true
	})
	return n
}

func digestPageConfigs(data gjson.Result) Formatted {
	return Formatted{
		Summary: fmt.Sprintf("Generated UI config with %d pages", countMembers(data.Get("pages"))),
		Details: map[string]any{},
	}
}

func digestDatasets(verb string) digester {
	return func(data gjson.Result) Formatted {
		details := map[string]any{}
		entities, records := 0, 0
		data.ForEach(func(key, value gjson.Result) bool {
			n := len(value.Array())
			entities++
			records += n
			details[key.String()] = fmt.Sprintf("%d records", n)
			return true
		})
		return Formatted{
			Summary: fmt.Sprintf("%s %d records across %d entities", verb, records, entities),
			Details: details,
		}
	}
}

func digestEditIntent(data gjson.Result) Formatted {
	target := str(data, "edit_target", "Unknown")
	op := str(data, "operation", "Unknown")
	return Formatted{
		Summary: fmt.Sprintf("Edit: %s %s", op, target),
		Details: map[string]any{
			"Target":    fmt.Sprintf("%s on %s", target, str(data, "target_page", "Unknown")),
			"Operation": op,
			"Component": str(data, "target_component", "N/A"),
		},
	}
}

func rawSize(r gjson.Result) int {
	if !r.Exists() {
		return len("{}")
	}
	return len(r.Raw)
}

func digestLoadedState(data gjson.Result) Formatted {
	size := rawSize(data.Get("config")) + rawSize(data.Get("mockData"))
	return Formatted{
		Summary: fmt.Sprintf("Loaded current app state (%d bytes)", size),
		Details: map[string]any{},
	}
}

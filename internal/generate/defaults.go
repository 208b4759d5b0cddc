package generate

import (
	"strings"
	"unicode"

	"github.com/randalmurphal/appforge/internal/flowstate"
)

// DefaultIntent names the app "Task App" and uses the instruction itself
// as the summary.
func DefaultIntent(instruction string) flowstate.Intent {
	return flowstate.Intent{AppName: "Task App", Summary: instruction}
}

// DefaultUseCases is a single Task entity with a dashboard and a task
// page.
func DefaultUseCases() flowstate.UseCases {
	return flowstate.UseCases{
		Entities: []flowstate.Entity{{
			Name: "Task",
			Fields: []flowstate.Field{
				{Name: "title", Type: "string"},
				{Name: "description", Type: "string"},
				{Name: "status", Type: "select", Options: []any{"Todo", "In Progress", "Done"}},
			},
		}},
		Pages: defaultPages(),
	}
}

func defaultPages() []flowstate.Page {
	return []flowstate.Page{
		{Title: "Dashboard", Path: "/", Icon: "home", Purpose: "Main dashboard"},
		{Title: "Tasks", Path: "/tasks", Icon: "list", Purpose: "Task management"},
	}
}

// DefaultDatasets is an empty Task dataset.
func DefaultDatasets() flowstate.Datasets {
	return flowstate.Datasets{"Task": []flowstate.Record{}}
}

// DefaultEditIntent treats the instruction as an update to the main
// component of the dashboard.
func DefaultEditIntent(instruction string) flowstate.EditIntent {
	return flowstate.EditIntent{
		EditTarget:      "component",
		TargetPage:      "Dashboard",
		TargetComponent: "main",
		Operation:       "update",
		Details:         map[string]any{"description": instruction},
	}
}

// DefaultPageConfig synthesizes a UI configuration from the entities and
// pages. Every page gets a header metric card; dashboards get an activity
// chart; a page mentioning an entity in its title or purpose gets a table
// and a form for that entity.
func DefaultPageConfig(entities []flowstate.Entity, pages []flowstate.Page) flowstate.Document {
	if len(pages) == 0 {
		pages = defaultPages()
	}

	out := map[string]any{}
	for _, page := range pages {
		id := pageID(page)
		if id == "" {
			continue
		}

		title := page.Title
		if title == "" {
			title = "Page"
		}

		main := []any{}
		if strings.Contains(strings.ToLower(page.Title), "dashboard") || page.Path == "/" {
			main = append(main, activityChart())
		}
		for _, e := range entities {
			name := strings.ToLower(e.Name)
			if strings.Contains(strings.ToLower(page.Title), name) ||
				strings.Contains(strings.ToLower(page.Purpose), name) {
				main = append(main, entityTable(e), entityForm(e))
			}
		}

		out[id] = map[string]any{
			"title": title,
			"zones": map[string]any{
				"header": map[string]any{
					"title": "Header",
					"components": []any{
						map[string]any{
							"type":  "MetricCard",
							"title": title + " Overview",
							"props": map[string]any{
								"metrics": []any{
									map[string]any{"label": "Total Items", "value": "0"},
									map[string]any{"label": "Active Items", "value": "0"},
								},
							},
						},
					},
				},
				"main": map[string]any{
					"title":      "Main Content",
					"components": main,
				},
			},
		}
	}
	return flowstate.Document{"pages": out}
}

func pageID(p flowstate.Page) string {
	if id := strings.Trim(p.Path, "/"); id != "" {
		return id
	}
	return strings.ReplaceAll(strings.ToLower(p.Title), " ", "-")
}

func activityChart() map[string]any {
	return map[string]any{
		"type":  "Chart",
		"title": "Activity Overview",
		"props": map[string]any{
			"chartType": "bar",
			"data": map[string]any{
				"labels": []any{"Mon", "Tue", "Wed", "Thu", "Fri"},
				"datasets": []any{
					map[string]any{"label": "Activity", "data": []any{12, 19, 3, 5, 2}},
				},
			},
		},
	}
}

func entityTable(e flowstate.Entity) map[string]any {
	columns := []any{}
	for i, f := range e.Fields {
		if i == 4 {
			break
		}
		columns = append(columns, map[string]any{
			"title":     orDefault(f.Name, "Field"),
			"dataIndex": orDefault(f.Name, "field"),
			"key":       orDefault(f.Name, "field"),
		})
	}
	if len(e.Fields) == 0 {
		columns = append(columns, map[string]any{"title": "ID", "dataIndex": "id", "key": "id"})
	}

	return map[string]any{
		"type":  "DataTable",
		"title": e.Name + " List",
		"props": map[string]any{
			"dataSource": e.Name,
			"columns":    columns,
			"pagination": map[string]any{"pageSize": 10},
		},
	}
}

func entityForm(e flowstate.Entity) map[string]any {
	items := []any{}
	for _, f := range e.Fields {
		items = append(items, map[string]any{
			"name":  orDefault(f.Name, "field"),
			"label": titleCase(orDefault(f.Name, "Field")),
			"type":  orDefault(f.Type, "string"),
		})
	}
	if len(e.Fields) == 0 {
		items = append(items, map[string]any{"name": "name", "label": "Name", "type": "string"})
	}

	return map[string]any{
		"type":  "Form",
		"title": "Add " + e.Name,
		"props": map[string]any{
			"formItems":  items,
			"submitText": "Add " + e.Name,
		},
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest: "due_date" becomes "Due_Date".
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

package flowstate

// Document is an opaque structured artifact such as a UI configuration.
type Document map[string]any

// Record is one row of a dataset.
type Record map[string]any

// Datasets maps a dataset name to its records.
type Datasets map[string][]Record

// Count returns the total number of records across all datasets.
func (d Datasets) Count() int {
	n := 0
	for _, records := range d {
		n += len(records)
	}
	return n
}

// Field describes one attribute of an entity.
type Field struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Options []any  `json:"options,omitempty"`
}

// Entity is a data type of the generated application.
type Entity struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Page is a screen of the generated application.
type Page struct {
	Title   string `json:"title"`
	Path    string `json:"path"`
	Icon    string `json:"icon"`
	Purpose string `json:"purpose"`
}

// Intent is the result of analyzing a create request.
type Intent struct {
	AppName string `json:"app_name"`
	Summary string `json:"use_case_summary"`
}

// UseCases lists the entities and pages derived from a summary.
type UseCases struct {
	Entities []Entity `json:"entities"`
	Pages    []Page   `json:"pages"`
}

// EditIntent describes what an edit request wants to change.
type EditIntent struct {
	EditTarget      string         `json:"edit_target"`
	TargetPage      string         `json:"target_page"`
	TargetComponent string         `json:"target_component"`
	Operation       string         `json:"operation"`
	Details         map[string]any `json:"modification_details,omitempty"`
}

var schemaChangingOps = map[string]bool{
	"add_field":         true,
	"remove_field":      true,
	"modify_field_type": true,
	"add_entity":        true,
	"remove_entity":     true,
}

// NeedsDataRegeneration reports whether an edit changes the data schema
// and therefore requires the datasets to be regenerated.
func NeedsDataRegeneration(mod *EditIntent) bool {
	if mod == nil {
		return false
	}
	return schemaChangingOps[mod.Operation]
}

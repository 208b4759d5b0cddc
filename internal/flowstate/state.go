// Package flowstate defines the record that accumulates results across
// the steps of one flow run.
package flowstate

import (
	"errors"
	"fmt"
)

// Kind selects the step sequence a run executes.
type Kind string

const (
	KindCreate Kind = "create"
	KindEdit   Kind = "edit"
)

// ErrInvalidKind is returned by ParseKind for anything but create or edit.
var ErrInvalidKind = errors.New("invalid mode: must be 'create' or 'edit'")

// ParseKind validates a mode string received from a trigger.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCreate, KindEdit:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Prerequisite field names. Steps declare the ones they need.
const (
	FieldInstruction   = "instruction"
	FieldSummary       = "summary"
	FieldEntities      = "entities"
	FieldPages         = "pages"
	FieldConfig        = "config"
	FieldDatasets      = "datasets"
	FieldModification  = "modification"
	FieldCurrentConfig = "current_config"
	FieldUpdatedConfig = "updated_config"
	FieldUpdatedData   = "updated_data"
)

// Turn is one entry of prior conversation carried with a request.
type Turn map[string]any

// State is the mutable record of one flow run. Steps receive it by value
// and return the updated copy.
type State struct {
	Instruction string `json:"instruction"`
	FlowID      string `json:"flow_id"`
	Kind        Kind   `json:"kind"`
	UserID      string `json:"user_id,omitempty"`
	History     []Turn `json:"history,omitempty"`

	// create
	AppName  string   `json:"app_name,omitempty"`
	Summary  string   `json:"summary,omitempty"`
	Entities []Entity `json:"entities"`
	Pages    []Page   `json:"pages"`
	Config   Document `json:"config"`

	// Datasets holds generated datasets in create mode and the prior
	// datasets loaded from the store in edit mode.
	Datasets Datasets `json:"datasets"`

	// edit
	CurrentConfig Document    `json:"current_config"`
	EditTarget    string      `json:"edit_target,omitempty"`
	Modification  *EditIntent `json:"modification"`
	UpdatedConfig Document    `json:"updated_config"`
	UpdatedData   Datasets    `json:"updated_data"`
}

// New seeds a state for a fresh run.
func New(kind Kind, flowID, instruction string) State {
	return State{
		Instruction: instruction,
		FlowID:      flowID,
		Kind:        kind,
	}
}

// Has reports whether the named field has been populated.
func (s State) Has(field string) bool {
	switch field {
	case FieldInstruction:
		return s.Instruction != ""
	case FieldSummary:
		return s.Summary != ""
	case FieldEntities:
		return s.Entities != nil
	case FieldPages:
		return s.Pages != nil
	case FieldConfig:
		return s.Config != nil
	case FieldDatasets:
		return s.Datasets != nil
	case FieldModification:
		return s.Modification != nil
	case FieldCurrentConfig:
		return s.CurrentConfig != nil
	case FieldUpdatedConfig:
		return s.UpdatedConfig != nil
	case FieldUpdatedData:
		return s.UpdatedData != nil
	default:
		return false
	}
}

// ResultDatasets returns the datasets a finished edit run reports:
// the regenerated ones when present, otherwise the prior ones unchanged.
func (s State) ResultDatasets() Datasets {
	if len(s.UpdatedData) > 0 {
		return s.UpdatedData
	}
	return s.Datasets
}

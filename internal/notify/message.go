package notify

// Type discriminates the four message shapes.
type Type string

const (
	TypeStatus   Type = "status"
	TypeState    Type = "state"
	TypeError    Type = "error"
	TypeComplete Type = "complete"
)

// Message is one progress notification. Only the fields of its Type are
// set; the JSON form matches what observers already consume.
type Message struct {
	Type Type   `json:"type"`
	Step string `json:"step,omitempty"`

	// status, complete
	Message string `json:"message,omitempty"`

	// state
	Data      any        `json:"data,omitempty"`
	Formatted *Formatted `json:"formatted,omitempty"`

	// error
	Error string `json:"error,omitempty"`

	// complete
	Config        any    `json:"config,omitempty"`
	MockData      any    `json:"mockData,omitempty"`
	AppURL        string `json:"appUrl,omitempty"`
	PreviewAPIURL string `json:"previewApiUrl,omitempty"`
	Links         *Links `json:"links,omitempty"`
}

// Formatted is the human-friendly digest attached to state messages.
type Formatted struct {
	Summary string         `json:"summary"`
	Details map[string]any `json:"details"`
}

// Links carries the preview URLs of a completed flow.
type Links struct {
	App string `json:"app"`
	API string `json:"api"`
}

// Channel returns the notification channel name for a flow.
func Channel(flowID string) string {
	return "agent-updates-" + flowID
}

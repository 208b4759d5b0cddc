package notify

import (
	"strings"
)

// Publisher delivers a message to the observers of a flow. *Hub
// implements it.
type Publisher interface {
	Publish(flowID string, msg Message)
}

// URLTemplates build the preview URLs announced when a flow completes.
// "{id}" is replaced with the flow identifier.
type URLTemplates struct {
	App     string
	Preview string
}

// DefaultURLTemplates point at a local frontend and API.
var DefaultURLTemplates = URLTemplates{
	App:     "http://localhost:5174/?id={id}",
	Preview: "http://localhost:8000/project/preview/?id={id}",
}

// For returns the links of one flow.
func (t URLTemplates) For(flowID string) Links {
	return Links{
		App: strings.ReplaceAll(t.App, "{id}", flowID),
		API: strings.ReplaceAll(t.Preview, "{id}", flowID),
	}
}

// Notifier builds the four message shapes and publishes them.
type Notifier struct {
	pub  Publisher
	urls URLTemplates
}

// NewNotifier creates a notifier. Empty templates fall back to
// DefaultURLTemplates.
func NewNotifier(pub Publisher, urls URLTemplates) *Notifier {
	if urls.App == "" {
		urls.App = DefaultURLTemplates.App
	}
	if urls.Preview == "" {
		urls.Preview = DefaultURLTemplates.Preview
	}
	return &Notifier{pub: pub, urls: urls}
}

// Links returns the preview links of a flow.
func (n *Notifier) Links(flowID string) Links {
	return n.urls.For(flowID)
}

// Status announces that a step is starting.
func (n *Notifier) Status(flowID, step, message string) {
	n.pub.Publish(flowID, Message{
		Type:    TypeStatus,
		Step:    step,
		Message: message,
	})
}

// State announces a step result together with its digest.
func (n *Notifier) State(flowID, step string, data any) {
	formatted := Digest(step, data)
	n.pub.Publish(flowID, Message{
		Type:      TypeState,
		Step:      step,
		Data:      data,
		Formatted: &formatted,
	})
}

// Error announces a step failure.
func (n *Notifier) Error(flowID, step, message string) {
	n.pub.Publish(flowID, Message{
		Type:  TypeError,
		Step:  step,
		Error: message,
	})
}

// Complete announces the final configuration and datasets of a flow.
func (n *Notifier) Complete(flowID, message string, config, datasets any) {
	links := n.urls.For(flowID)
	n.pub.Publish(flowID, Message{
		Type:          TypeComplete,
		Message:       message,
		Config:        config,
		MockData:      datasets,
		AppURL:        links.App,
		PreviewAPIURL: links.API,
		Links:         &links,
	})
}

// Package notifytest provides an Observer that records messages for
// assertions.
package notifytest

import (
	"context"
	"sync"
	"time"

	"github.com/randalmurphal/appforge/internal/notify"
)

// Recorder stores every delivered message in order.
type Recorder struct {
	mu   sync.Mutex
	msgs []notify.Message
	ch   chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{ch: make(chan struct{}, 1)}
}

// Deliver implements notify.Observer.
func (r *Recorder) Deliver(_ context.Context, _ string, msg notify.Message) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()

	select {
	case r.ch <- struct{}{}:
	default:
	}
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Of returns the recorded messages of one type.
func (r *Recorder) Of(t notify.Type) []notify.Message {
	var out []notify.Message
	for _, m := range r.Messages() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// WaitFor blocks until a message matching pred has been recorded or the
// timeout expires. It reports whether one was seen.
func (r *Recorder) WaitFor(timeout time.Duration, pred func(notify.Message) bool) bool {
	deadline := time.After(timeout)
	for {
		for _, m := range r.Messages() {
			if pred(m) {
				return true
			}
		}
		select {
		case <-r.ch:
		case <-deadline:
			return false
		}
	}
}

// WaitForTerminal waits for a complete message or an error message from
// the given step.
func (r *Recorder) WaitForTerminal(timeout time.Duration, errorStep string) bool {
	return r.WaitFor(timeout, func(m notify.Message) bool {
		return m.Type == notify.TypeComplete || (m.Type == notify.TypeError && m.Step == errorStep)
	})
}

// Sequence returns "type:step" for every recorded message, handy for
// asserting order.
func (r *Recorder) Sequence() []string {
	msgs := r.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.Type) + ":" + m.Step
	}
	return out
}

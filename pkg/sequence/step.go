package sequence

import "github.com/randalmurphal/appforge/pkg/sequence/checkpoint"

// END is the terminal step identifier.
// Use it as the successor of the last step in a sequence.
const END = checkpoint.End

// StepFunc is the signature for all step functions.
// A step receives the execution context and the current state, and
// returns the updated state and any error.
//
// The state is passed by value. Steps modify and return it rather than
// relying on pointer mutation, so the state a failed step returns is
// exactly what the run reports back to its caller.
type StepFunc[S any] func(ctx Context, state S) (S, error)

// Step describes one named unit of work in a sequence.
//
// Requires lists the state fields that must be populated before the step
// may run. The executor checks them when the state implements
// Prerequisites; otherwise they are documentation only.
type Step[S any] struct {
	Name     string
	Requires []string
	Run      StepFunc[S]
}

// Prerequisites is implemented by states that can report which of their
// fields have been populated.
type Prerequisites interface {
	Has(field string) bool
}

// missingFields returns the required fields that state does not have yet.
func missingFields(state any, required []string) []string {
	p, ok := state.(Prerequisites)
	if !ok {
		return nil
	}
	var missing []string
	for _, f := range required {
		if !p.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

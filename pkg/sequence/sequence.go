package sequence

import (
	"fmt"
	"strings"
	"sync"
)

// Sequence is a mutable builder for a linear chain of steps.
// Use New to create one, then chain AddStep, Then and SetStart calls.
//
// Sequence is NOT thread-safe during building. Construct it in a single
// goroutine, then call Compile to obtain an immutable Compiled sequence
// that can be shared.
//
// Example:
//
//	seq := sequence.New[State]("create").
//	    AddStep(sequence.Step[State]{Name: "fetch", Run: fetch}).
//	    AddStep(sequence.Step[State]{Name: "store", Run: store}).
//	    Chain("fetch", "store")
//
//	compiled, err := seq.Compile()
type Sequence[S any] struct {
	mu    sync.RWMutex
	kind  string
	steps map[string]Step[S]
	order []string
	edges map[string][]string
	start string
}

// New creates a sequence builder for the given flow kind.
// The kind is carried into logs, metrics and spans.
func New[S any](kind string) *Sequence[S] {
	return &Sequence[S]{
		kind:  kind,
		steps: make(map[string]Step[S]),
		edges: make(map[string][]string),
	}
}

// AddStep adds a named step to the sequence.
// Returns the sequence for method chaining.
//
// Panics if:
//   - the name is empty
//   - the name is the reserved word "END" or "__end__" (case-insensitive)
//   - the name contains whitespace
//   - Run is nil
//   - the name already exists
func (s *Sequence[S]) AddStep(step Step[S]) *Sequence[S] {
	if step.Name == "" {
		panic("sequence: step name cannot be empty")
	}

	lower := strings.ToLower(step.Name)
	if lower == "end" || lower == END {
		panic("sequence: step name cannot be reserved word 'END'")
	}

	if strings.ContainsAny(step.Name, " \t\n\r") {
		panic("sequence: step name cannot contain whitespace")
	}

	if step.Run == nil {
		panic("sequence: step function cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.steps[step.Name]; exists {
		panic(fmt.Sprintf("sequence: duplicate step name: %s", step.Name))
	}

	s.steps[step.Name] = step
	s.order = append(s.order, step.Name)
	return s
}

// Then declares that to runs after from. The target can be a step name
// or END. Validation happens at Compile time, so edges may be added in
// any order.
func (s *Sequence[S]) Then(from, to string) *Sequence[S] {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.edges[from] = append(s.edges[from], to)
	return s
}

// Chain links the named steps in order, terminates the last one at END
// and makes the first one the start step.
func (s *Sequence[S]) Chain(names ...string) *Sequence[S] {
	if len(names) == 0 {
		return s
	}
	for i := 0; i < len(names)-1; i++ {
		s.Then(names[i], names[i+1])
	}
	s.Then(names[len(names)-1], END)
	return s.SetStart(names[0])
}

// SetStart designates the step a run begins with unless RunFrom says
// otherwise.
func (s *Sequence[S]) SetStart(name string) *Sequence[S] {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.start = name
	return s
}

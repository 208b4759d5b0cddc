package sequence

import (
	"context"
)

// Counter is a simple state for testing incrementing.
type Counter struct {
	Value int
}

// State tracks which steps ran and which fields were filled.
type State struct {
	Progress []string          `json:"progress"`
	Fields   map[string]string `json:"fields"`
	Count    int               `json:"count"`
}

// Has implements Prerequisites.
func (s State) Has(field string) bool {
	_, ok := s.Fields[field]
	return ok
}

func increment(_ Context, s Counter) (Counter, error) {
	s.Value++
	return s, nil
}

func step(name string, run StepFunc[State], requires ...string) Step[State] {
	return Step[State]{Name: name, Requires: requires, Run: run}
}

// tracking records its name and fills the given field.
func tracking(name, fills string) StepFunc[State] {
	return func(_ Context, s State) (State, error) {
		s.Progress = append(s.Progress, name)
		if fills != "" {
			if s.Fields == nil {
				s.Fields = map[string]string{}
			}
			s.Fields[fills] = name
		}
		s.Count++
		return s, nil
	}
}

func failing(err error) StepFunc[State] {
	return func(_ Context, s State) (State, error) {
		s.Progress = append(s.Progress, "partial")
		return s, err
	}
}

func panicking(value any) StepFunc[State] {
	return func(_ Context, _ State) (State, error) {
		panic(value)
	}
}

func testCtx() Context {
	return NewContext(context.Background())
}

// threeSteps builds a -> b -> c where b requires "a" and c requires "b".
func threeSteps() *Sequence[State] {
	return New[State]("test").
		AddStep(step("a", tracking("a", "a"))).
		AddStep(step("b", tracking("b", "b"), "a")).
		AddStep(step("c", tracking("c", "c"), "b")).
		Chain("a", "b", "c")
}

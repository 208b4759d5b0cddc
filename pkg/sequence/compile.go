package sequence

import (
	"errors"
	"fmt"
	"log/slog"
)

// Compile validates the sequence and creates an executable Compiled
// sequence. Multiple validation errors are joined together.
//
// Validation checks (in order):
//  1. The start step must be set
//  2. The start step must reference an existing step
//  3. Every edge source and target must reference an existing step (or END)
//  4. No step may have more than one successor
//  5. Walking from the start must reach END without revisiting a step
//
// Steps that cannot be reached from the start are logged as warnings but
// do not fail compilation.
func (s *Sequence[S]) Compile() (*Compiled[S], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error

	if s.start == "" {
		errs = append(errs, ErrNoStart)
	} else if _, exists := s.steps[s.start]; !exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrStartNotFound, s.start))
	}

	for from, targets := range s.edges {
		if _, exists := s.steps[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrStepNotFound, from))
		}
		for _, to := range targets {
			if to == END {
				continue
			}
			if _, exists := s.steps[to]; !exists {
				errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrStepNotFound, to))
			}
		}
		if len(targets) > 1 {
			errs = append(errs, fmt.Errorf("%w: step '%s' has %d successors", ErrNotLinear, from, len(targets)))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	order, err := s.walk()
	if err != nil {
		return nil, err
	}

	s.warnUnreachable(order)

	return s.build(order), nil
}

// walk follows successors from the start step and returns the visiting
// order. It fails on a missing successor or a revisited step.
func (s *Sequence[S]) walk() ([]string, error) {
	seen := make(map[string]bool, len(s.steps))
	var order []string

	current := s.start
	for current != END {
		if seen[current] {
			return nil, fmt.Errorf("%w: step '%s' is revisited", ErrCycle, current)
		}
		seen[current] = true
		order = append(order, current)

		targets := s.edges[current]
		if len(targets) == 0 {
			return nil, fmt.Errorf("%w: step '%s' has no successor", ErrNoPathToEnd, current)
		}
		current = targets[0]
	}
	return order, nil
}

func (s *Sequence[S]) warnUnreachable(order []string) {
	reachable := make(map[string]bool, len(order))
	for _, name := range order {
		reachable[name] = true
	}
	for _, name := range s.order {
		if !reachable[name] {
			slog.Warn("step is unreachable from start",
				slog.String("kind", s.kind),
				slog.String("step", name))
		}
	}
}

func (s *Sequence[S]) build(order []string) *Compiled[S] {
	steps := make(map[string]Step[S], len(s.steps))
	for name, step := range s.steps {
		requires := make([]string, len(step.Requires))
		copy(requires, step.Requires)
		step.Requires = requires
		steps[name] = step
	}

	successors := make(map[string]string, len(s.edges))
	for from, targets := range s.edges {
		successors[from] = targets[0]
	}

	return &Compiled[S]{
		kind:       s.kind,
		start:      s.start,
		steps:      steps,
		successors: successors,
		order:      order,
	}
}

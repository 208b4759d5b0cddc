package sequence

// Compiled is an immutable, executable sequence created by Compile.
//
// Compiled is safe for concurrent use: many runs may execute the same
// sequence at once, each with its own state.
type Compiled[S any] struct {
	kind       string
	start      string
	steps      map[string]Step[S]
	successors map[string]string
	order      []string
}

// Kind returns the flow kind the sequence was built for.
func (c *Compiled[S]) Kind() string {
	return c.kind
}

// Start returns the default start step.
func (c *Compiled[S]) Start() string {
	return c.start
}

// Order returns the step names in execution order from the start step.
func (c *Compiled[S]) Order() []string {
	res := make([]string, len(c.order))
	copy(res, c.order)
	return res
}

// HasStep reports whether the sequence contains the named step.
func (c *Compiled[S]) HasStep(name string) bool {
	_, ok := c.steps[name]
	return ok
}

// Successor returns the step that follows name. It returns END for the
// last step and false for unknown names. It depends only on the compiled
// step table.
func (c *Compiled[S]) Successor(name string) (string, bool) {
	next, ok := c.successors[name]
	return next, ok
}

// Requires returns the prerequisite fields declared by the named step.
func (c *Compiled[S]) Requires(name string) []string {
	step, ok := c.steps[name]
	if !ok {
		return nil
	}
	res := make([]string, len(step.Requires))
	copy(res, step.Requires)
	return res
}

func (c *Compiled[S]) getStep(name string) (Step[S], bool) {
	step, ok := c.steps[name]
	return step, ok
}

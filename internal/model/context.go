package model

// InterpreterContext is the per-record scratchpad Interpretations mutate:
// the raw source record, the DesiredIngest accumulator, and a map of
// variables set along the way. It is created fresh from a record and must
// support a deep copy so that independent interpretation passes cannot
// observe each other's mutations.
type InterpreterContext struct {
	Record    Record
	Ingest    *DesiredIngest
	Variables map[string]any
}

// FreshContext creates a new InterpreterContext for record, with an empty
// DesiredIngest and no variables set.
func FreshContext(record Record) *InterpreterContext {
	return &InterpreterContext{
		Record:    record,
		Ingest:    NewDesiredIngest(),
		Variables: make(map[string]any),
	}
}

// DeepCopy duplicates all mutable state reachable from the context. The
// raw record is treated as immutable and shared by reference
// (copy-on-write is acceptable per the design notes, since record values
// produced by extractors are not mutated by Interpretations).
func (c *InterpreterContext) DeepCopy() *InterpreterContext {
	vars := make(map[string]any, len(c.Variables))
	for k, v := range c.Variables {
		vars[k] = v
	}
	return &InterpreterContext{
		Record:    c.Record,
		Ingest:    c.Ingest.DeepCopy(),
		Variables: vars,
	}
}

// SetVariable records a value under name, overwriting any prior value.
func (c *InterpreterContext) SetVariable(name string, value any) {
	c.Variables[name] = value
}

// Variable returns the value set under name, if any.
func (c *InterpreterContext) Variable(name string) (any, bool) {
	v, ok := c.Variables[name]
	return v, ok
}

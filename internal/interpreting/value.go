package interpreting

import "github.com/conduix/nodestream/internal/model"

// ValueSource resolves a value at Apply time: from a literal, a field on
// the raw record, or a previously-set context variable. It lets the
// built-in Interpretations stay generic about where their property
// values come from, the way nodestream's interpretation value
// providers do.
type ValueSource interface {
	Resolve(ctx *model.InterpreterContext) any
}

// Literal always resolves to the same fixed value.
type Literal struct{ Value any }

func (l Literal) Resolve(ctx *model.InterpreterContext) any { return l.Value }

// FieldRef resolves to a field of the raw record, which must be a
// map[string]any (or implement FieldGetter); an absent field resolves to
// nil.
type FieldRef struct{ Field string }

// FieldGetter lets a non-map record type participate in FieldRef
// resolution.
type FieldGetter interface {
	GetField(name string) (any, bool)
}

func (f FieldRef) Resolve(ctx *model.InterpreterContext) any {
	switch rec := ctx.Record.(type) {
	case map[string]any:
		return rec[f.Field]
	case FieldGetter:
		v, _ := rec.GetField(f.Field)
		return v
	default:
		return nil
	}
}

// VariableRef resolves to a variable previously set by SetVariable, or
// nil if it was never set.
type VariableRef struct{ Name string }

func (v VariableRef) Resolve(ctx *model.InterpreterContext) any {
	val, _ := ctx.Variable(v.Name)
	return val
}

// resolveAll resolves a map of property-name to ValueSource into plain
// values, skipping entries that resolve to nil so optional fields do not
// clobber existing properties with nil.
func resolveAll(ctx *model.InterpreterContext, sources map[string]ValueSource) map[string]any {
	out := make(map[string]any, len(sources))
	for name, src := range sources {
		if v := src.Resolve(ctx); v != nil {
			out[name] = v
		}
	}
	return out
}

package interpreting

import "github.com/conduix/nodestream/internal/model"

// RecordDecomposer splits one InterpreterContext into zero-or-more
// sub-contexts, via an optional iterate-on expression. Built from an
// IterateOn path: absent, it yields the parent context unchanged;
// present, it selects a sub-collection from the record and yields one
// deep-copied context per element, each pointing its Record at that
// element.
type RecordDecomposer struct {
	// IterateOn, when non-empty, names a field on the record holding a
	// slice to iterate. Each element becomes the Record of its own
	// sub-context.
	IterateOn string
}

// Decompose applies the decomposer to ctx.
func (d RecordDecomposer) Decompose(ctx *model.InterpreterContext) []*model.InterpreterContext {
	if d.IterateOn == "" {
		return []*model.InterpreterContext{ctx}
	}

	elements := extractCollection(ctx.Record, d.IterateOn)
	if elements == nil {
		return nil
	}

	out := make([]*model.InterpreterContext, 0, len(elements))
	for _, el := range elements {
		sub := ctx.DeepCopy()
		sub.Record = el
		out = append(out, sub)
	}
	return out
}

func extractCollection(record model.Record, field string) []any {
	var raw any
	switch rec := record.(type) {
	case map[string]any:
		raw = rec[field]
	case FieldGetter:
		v, ok := rec.GetField(field)
		if !ok {
			return nil
		}
		raw = v
	default:
		return nil
	}

	switch v := raw.(type) {
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	default:
		return nil
	}
}

// Package interpreting implements the interpretation tree: Pass
// variants, the leaf Interpretation contract, the record decomposer, and
// the Interpreter transformer that ties them together, per the
// interpretation stage's design.
package interpreting

import "github.com/conduix/nodestream/internal/model"

// Interpretation is a leaf that mutates an InterpreterContext, adding
// nodes, relationships, properties, or variables.
type Interpretation interface {
	Apply(ctx *model.InterpreterContext)
}

// IndexedInterpretation is the optional capability an Interpretation
// implements to contribute index descriptors, gathered once before any
// record is processed.
type IndexedInterpretation interface {
	Indexes() []model.IndexDescriptor
}

// Pass is a node in the interpretation tree. Apply takes one context and
// returns every context produced by this pass.
type Pass interface {
	Apply(ctx *model.InterpreterContext) []*model.InterpreterContext
	// gatherIndexes walks the subtree collecting every index descriptor
	// any contained Interpretation declares, in tree order.
	gatherIndexes(out *[]model.IndexDescriptor)
}

// GatherIndexes walks pass collecting every index descriptor declared by
// any Interpretation reachable from it, in tree order, deduplicated by
// descriptor identity.
func GatherIndexes(pass Pass) []model.IndexDescriptor {
	var collected []model.IndexDescriptor
	pass.gatherIndexes(&collected)
	return dedupeIndexes(collected)
}

func dedupeIndexes(in []model.IndexDescriptor) []model.IndexDescriptor {
	seen := make(map[string]bool, len(in))
	var out []model.IndexDescriptor
	for _, idx := range in {
		key := indexKey(idx)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, idx)
	}
	return out
}

func indexKey(idx model.IndexDescriptor) string {
	switch v := idx.(type) {
	case model.KeyIndex:
		return "key|" + v.NodeType + "|" + joinStrings(v.Fields)
	case model.FieldIndex:
		return "field|" + v.NodeType + "|" + v.Field
	case model.TimeToLiveConfiguration:
		return "ttl|" + v.NodeType
	default:
		return "unknown"
	}
}

func joinStrings(fields []string) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += ","
		}
		out += f
	}
	return out
}

func applyInterpretations(ctx *model.InterpreterContext, interpretations []Interpretation) {
	for _, in := range interpretations {
		in.Apply(ctx)
	}
}

func gatherFromInterpretations(interpretations []Interpretation, out *[]model.IndexDescriptor) {
	for _, in := range interpretations {
		if indexed, ok := in.(IndexedInterpretation); ok {
			*out = append(*out, indexed.Indexes()...)
		}
	}
}

// NullPass applies no interpretations and yields the context unchanged.
// It is the identity element of the tree, used where a branch has no
// interpretations configured.
type NullPass struct{}

func (NullPass) Apply(ctx *model.InterpreterContext) []*model.InterpreterContext {
	return []*model.InterpreterContext{ctx}
}

func (NullPass) gatherIndexes(out *[]model.IndexDescriptor) {}

// SingleSequencePass applies its Interpretations in order to the same
// context, in place: later interpretations observe earlier ones'
// mutations. It always yields exactly one context.
type SingleSequencePass struct {
	Interpretations []Interpretation
}

func NewSingleSequencePass(interpretations ...Interpretation) *SingleSequencePass {
	return &SingleSequencePass{Interpretations: interpretations}
}

func (p *SingleSequencePass) Apply(ctx *model.InterpreterContext) []*model.InterpreterContext {
	applyInterpretations(ctx, p.Interpretations)
	return []*model.InterpreterContext{ctx}
}

func (p *SingleSequencePass) gatherIndexes(out *[]model.IndexDescriptor) {
	gatherFromInterpretations(p.Interpretations, out)
}

// MultiSequencePass applies each of its sub-passes to an independent
// deep copy of the input context, so mutations performed by one branch
// are never observable to another. It yields the concatenation of every
// branch's output, in branch order.
type MultiSequencePass struct {
	Branches []Pass
}

func NewMultiSequencePass(branches ...Pass) *MultiSequencePass {
	return &MultiSequencePass{Branches: branches}
}

func (p *MultiSequencePass) Apply(ctx *model.InterpreterContext) []*model.InterpreterContext {
	var out []*model.InterpreterContext
	for _, branch := range p.Branches {
		branchCtx := ctx.DeepCopy()
		out = append(out, branch.Apply(branchCtx)...)
	}
	return out
}

func (p *MultiSequencePass) gatherIndexes(out *[]model.IndexDescriptor) {
	for _, branch := range p.Branches {
		branch.gatherIndexes(out)
	}
}

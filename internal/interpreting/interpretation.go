package interpreting

import (
	"sort"

	"github.com/conduix/nodestream/internal/model"
)

// NodeIdentitySpec builds a model.NodeIdentity at Apply time from a
// fixed node type and a set of key-field ValueSources.
type NodeIdentitySpec struct {
	Type string
	Keys map[string]ValueSource
}

func (s NodeIdentitySpec) resolve(ctx *model.InterpreterContext) model.NodeIdentity {
	keys := make(map[string]any, len(s.Keys))
	for name, src := range s.Keys {
		keys[name] = src.Resolve(ctx)
	}
	return model.NodeIdentity{Type: s.Type, Keys: keys}
}

// SetVariableInterpretation assigns the resolved value of Source to
// Name, visible to every later Interpretation in the same
// SingleSequencePass. The decomposer's iterate-on field is read from the
// record, not from variables.
type SetVariableInterpretation struct {
	Name   string
	Source ValueSource
}

func (s SetVariableInterpretation) Apply(ctx *model.InterpreterContext) {
	ctx.SetVariable(s.Name, s.Source.Resolve(ctx))
}

// AddNodeInterpretation upserts a node into the context's DesiredIngest.
type AddNodeInterpretation struct {
	Identity   NodeIdentitySpec
	Properties map[string]ValueSource
	KeyIndex   bool
}

func (a AddNodeInterpretation) Apply(ctx *model.InterpreterContext) {
	identity := a.Identity.resolve(ctx)
	ctx.Ingest.AddNode(identity, resolveAll(ctx, a.Properties))
}

func (a AddNodeInterpretation) Indexes() []model.IndexDescriptor {
	if !a.KeyIndex {
		return nil
	}
	var fields []string
	for name := range a.Identity.Keys {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return []model.IndexDescriptor{model.KeyIndex{NodeType: a.Identity.Type, Fields: fields}}
}

// AddRelationshipInterpretation upserts a relationship between two node
// identities into the context's DesiredIngest.
type AddRelationshipInterpretation struct {
	Type       string
	From       NodeIdentitySpec
	To         NodeIdentitySpec
	Properties map[string]ValueSource
}

func (a AddRelationshipInterpretation) Apply(ctx *model.InterpreterContext) {
	from := a.From.resolve(ctx)
	to := a.To.resolve(ctx)
	ctx.Ingest.AddRelationship(a.Type, from, to, resolveAll(ctx, a.Properties))
}

// FieldIndexInterpretation declares a secondary index without mutating
// the ingest; it exists purely to contribute an index descriptor, for
// fields referenced often enough to warrant one outside a node's own key
// fields.
type FieldIndexInterpretation struct {
	NodeType string
	Field    string
}

func (FieldIndexInterpretation) Apply(ctx *model.InterpreterContext) {}

func (f FieldIndexInterpretation) Indexes() []model.IndexDescriptor {
	return []model.IndexDescriptor{model.FieldIndex{NodeType: f.NodeType, Field: f.Field}}
}

// HookInterpretation attaches an IngestionHook to the context's
// DesiredIngest, to run alongside the ingest's node/relationship writes.
type HookInterpretation struct {
	Hook model.IngestionHook
}

func (h HookInterpretation) Apply(ctx *model.InterpreterContext) {
	ctx.Ingest.AddHook(h.Hook)
}

package interpreting_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduix/nodestream/internal/interpreting"
	"github.com/conduix/nodestream/internal/model"
)

// fakeDedupeService is an in-memory dedupe.Service for exercising
// Interpreter's skip-on-duplicate wiring without a live Redis.
type fakeDedupeService struct {
	seen map[string]bool
}

func newFakeDedupeService() *fakeDedupeService {
	return &fakeDedupeService{seen: make(map[string]bool)}
}

func (s *fakeDedupeService) IsDuplicate(ctx context.Context, id string) (bool, error) {
	return s.seen[id], nil
}

func (s *fakeDedupeService) MarkProcessed(ctx context.Context, id string) error {
	s.seen[id] = true
	return nil
}

func (s *fakeDedupeService) Close() error { return nil }

func personIdentity(field string) interpreting.NodeIdentitySpec {
	return interpreting.NodeIdentitySpec{
		Type: "Person",
		Keys: map[string]interpreting.ValueSource{"id": interpreting.FieldRef{Field: field}},
	}
}

func TestSingleSequenceObservesEarlierMutations(t *testing.T) {
	pass := interpreting.NewSingleSequencePass(
		interpreting.SetVariableInterpretation{Name: "name", Source: interpreting.FieldRef{Field: "name"}},
		interpreting.AddNodeInterpretation{
			Identity: personIdentity("id"),
			Properties: map[string]interpreting.ValueSource{
				"name": interpreting.VariableRef{Name: "name"},
			},
		},
	)

	ctx := model.FreshContext(map[string]any{"id": "p1", "name": "Ada"})
	results := pass.Apply(ctx)

	require.Len(t, results, 1)
	require.Len(t, results[0].Ingest.Nodes, 1)
	assert.Equal(t, "Ada", results[0].Ingest.Nodes[0].Properties["name"])
}

func TestMultiSequenceIsolatesBranches(t *testing.T) {
	branchA := interpreting.NewSingleSequencePass(
		interpreting.SetVariableInterpretation{Name: "tag", Source: interpreting.Literal{Value: "a"}},
		interpreting.AddNodeInterpretation{Identity: personIdentity("id")},
	)
	branchB := interpreting.NewSingleSequencePass(
		interpreting.AddNodeInterpretation{
			Identity: personIdentity("id"),
			Properties: map[string]interpreting.ValueSource{
				"tag": interpreting.VariableRef{Name: "tag"},
			},
		},
	)
	multi := interpreting.NewMultiSequencePass(branchA, branchB)

	ctx := model.FreshContext(map[string]any{"id": "p1"})
	results := multi.Apply(ctx)

	require.Len(t, results, 2)
	// Branch B never observes the "tag" variable set by branch A.
	_, ok := results[1].Ingest.Nodes[0].Properties["tag"]
	assert.False(t, ok)
}

func TestDecomposerIteratesCollection(t *testing.T) {
	decomposer := interpreting.RecordDecomposer{IterateOn: "children"}
	ctx := model.FreshContext(map[string]any{
		"children": []any{
			map[string]any{"id": "c1"},
			map[string]any{"id": "c2"},
		},
	})

	subs := decomposer.Decompose(ctx)
	require.Len(t, subs, 2)
	assert.Equal(t, "c1", subs[0].Record.(map[string]any)["id"])
	assert.Equal(t, "c2", subs[1].Record.(map[string]any)["id"])
}

func TestDecomposerWithoutIterateOnYieldsUnchanged(t *testing.T) {
	decomposer := interpreting.RecordDecomposer{}
	ctx := model.FreshContext(map[string]any{"id": "p1"})
	subs := decomposer.Decompose(ctx)
	require.Len(t, subs, 1)
	assert.Same(t, ctx, subs[0])
}

func TestInterpreterEmitsIndexesOnce(t *testing.T) {
	main := interpreting.NewSingleSequencePass(
		interpreting.AddNodeInterpretation{Identity: personIdentity("id"), KeyIndex: true},
	)
	interp := interpreting.NewInterpreter(main, nil, interpreting.RecordDecomposer{})

	indexes := interp.EmitIndexes(context.Background())
	require.Len(t, indexes, 1)
	keyIdx, ok := indexes[0].(model.KeyIndex)
	require.True(t, ok)
	assert.Equal(t, "Person", keyIdx.NodeType)
}

func TestAddNodeKeyIndexFieldsAreSortedForDeterminism(t *testing.T) {
	identity := interpreting.NodeIdentitySpec{
		Type: "Person",
		Keys: map[string]interpreting.ValueSource{
			"zip":      interpreting.FieldRef{Field: "zip"},
			"account":  interpreting.FieldRef{Field: "account"},
			"lastName": interpreting.FieldRef{Field: "lastName"},
		},
	}
	interp := interpreting.AddNodeInterpretation{Identity: identity, KeyIndex: true}

	for i := 0; i < 20; i++ {
		indexes := interp.Indexes()
		require.Len(t, indexes, 1)
		keyIdx, ok := indexes[0].(model.KeyIndex)
		require.True(t, ok)
		assert.Equal(t, []string{"account", "lastName", "zip"}, keyIdx.Fields)
	}
}

func TestInterpreterSkipsAlreadyProcessedDedupeKey(t *testing.T) {
	main := interpreting.NewSingleSequencePass(
		interpreting.AddNodeInterpretation{Identity: personIdentity("id")},
	)
	svc := newFakeDedupeService()
	svc.seen["p1"] = true
	interp := interpreting.NewInterpreter(main, nil, interpreting.RecordDecomposer{})
	interp.Dedupe = svc
	interp.DedupeKey = interpreting.FieldRef{Field: "id"}

	results, err := interp.Transform(context.Background(), map[string]any{"id": "p1"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInterpreterAttachesDedupeHookAndEmitsFreshKey(t *testing.T) {
	main := interpreting.NewSingleSequencePass(
		interpreting.AddNodeInterpretation{Identity: personIdentity("id")},
	)
	svc := newFakeDedupeService()
	interp := interpreting.NewInterpreter(main, nil, interpreting.RecordDecomposer{})
	interp.Dedupe = svc
	interp.DedupeKey = interpreting.FieldRef{Field: "id"}

	results, err := interp.Transform(context.Background(), map[string]any{"id": "p1"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	ingest := results[0].(*model.DesiredIngest)
	require.Len(t, ingest.Hooks, 1)
	assert.Equal(t, "dedupe:p1", ingest.Hooks[0].Name())
	assert.False(t, svc.seen["p1"])
}

func TestInterpreterTransformEmitsOneIngestPerSubContext(t *testing.T) {
	main := interpreting.NewSingleSequencePass(
		interpreting.AddNodeInterpretation{Identity: personIdentity("id")},
	)
	decomposer := interpreting.RecordDecomposer{IterateOn: "people"}
	interp := interpreting.NewInterpreter(main, nil, decomposer)

	record := map[string]any{
		"people": []any{
			map[string]any{"id": "p1"},
			map[string]any{"id": "p2"},
		},
	}

	results, err := interp.Transform(context.Background(), record)
	require.NoError(t, err)
	require.Len(t, results, 2)

	ingest0 := results[0].(*model.DesiredIngest)
	ingest1 := results[1].(*model.DesiredIngest)
	assert.Equal(t, "p1", ingest0.Nodes[0].Identity.Keys["id"])
	assert.Equal(t, "p2", ingest1.Nodes[0].Identity.Keys["id"])
}

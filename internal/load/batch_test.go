package load_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduix/nodestream/internal/load"
	"github.com/conduix/nodestream/internal/model"
)

type fakeExecutor struct {
	nodeCalls         [][]*model.Node
	relCalls          [][]*model.Relationship
	failFirstNCalls   int
	hookNames         []string
}

func (f *fakeExecutor) UpsertNodes(ctx context.Context, op model.OperationOnNodeIdentity, nodes []*model.Node) error {
	if f.failFirstNCalls > 0 {
		f.failFirstNCalls--
		return errors.New("transient failure")
	}
	f.nodeCalls = append(f.nodeCalls, nodes)
	return nil
}

func (f *fakeExecutor) UpsertRelationships(ctx context.Context, op model.OperationOnRelationshipIdentity, rels []*model.Relationship) error {
	f.relCalls = append(f.relCalls, rels)
	return nil
}

func (f *fakeExecutor) UpsertKeyIndex(ctx context.Context, idx model.KeyIndex) error   { return nil }
func (f *fakeExecutor) UpsertFieldIndex(ctx context.Context, idx model.FieldIndex) error { return nil }
func (f *fakeExecutor) PerformTTL(ctx context.Context, cfg model.TimeToLiveConfiguration) error {
	return nil
}
func (f *fakeExecutor) ExecuteHook(ctx context.Context, hook model.IngestionHook) error {
	f.hookNames = append(f.hookNames, hook.Name())
	return nil
}

type namedHook string

func (n namedHook) Name() string { return string(n) }

func ingestWithNodes(n int) *model.DesiredIngest {
	ingest := model.NewDesiredIngest()
	for i := 0; i < n; i++ {
		ingest.AddNode(model.NodeIdentity{Type: "Person", Keys: map[string]any{"id": i}}, map[string]any{"n": i})
	}
	return ingest
}

func TestStoreWriterChunksLargeBatches(t *testing.T) {
	exec := &fakeExecutor{}
	w := load.NewStoreWriter(exec, load.ChunkedRetryConfig{ChunkSize: 2}, nil)

	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.WriteRecord(ctx, ingestWithNodes(5)))
	require.NoError(t, w.Flush(ctx))

	require.Len(t, exec.nodeCalls, 3)
	assert.Len(t, exec.nodeCalls[0], 2)
	assert.Len(t, exec.nodeCalls[1], 2)
	assert.Len(t, exec.nodeCalls[2], 1)
}

func TestStoreWriterRetriesTransientFailures(t *testing.T) {
	exec := &fakeExecutor{failFirstNCalls: 2}
	w := load.NewStoreWriter(exec, load.ChunkedRetryConfig{ChunkSize: 10, RetriesPerOp: 3}, nil)

	ctx := context.Background()
	require.NoError(t, w.WriteRecord(ctx, ingestWithNodes(1)))
	require.NoError(t, w.Flush(ctx))

	require.Len(t, exec.nodeCalls, 1)
}

func TestStoreWriterExecutesHooksOnFinish(t *testing.T) {
	exec := &fakeExecutor{}
	w := load.NewStoreWriter(exec, load.ChunkedRetryConfig{}, nil)

	ctx := context.Background()
	ingest := model.NewDesiredIngest()
	ingest.AddHook(namedHook("reindex"))
	require.NoError(t, w.WriteRecord(ctx, ingest))
	require.NoError(t, w.Finish(ctx))

	assert.Equal(t, []string{"reindex"}, exec.hookNames)
}

package dedupe_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduix/nodestream/internal/dedupe"
)

type memoryService struct {
	processed map[string]bool
}

func newMemoryService() *memoryService { return &memoryService{processed: map[string]bool{}} }

func (m *memoryService) IsDuplicate(ctx context.Context, id string) (bool, error) {
	return m.processed[id], nil
}
func (m *memoryService) MarkProcessed(ctx context.Context, id string) error {
	m.processed[id] = true
	return nil
}
func (m *memoryService) Close() error { return nil }

func TestHookExecuteMarksProcessed(t *testing.T) {
	svc := newMemoryService()
	h := dedupe.Hook{Service: svc, ID: "record-1"}

	ctx := context.Background()
	dup, err := svc.IsDuplicate(ctx, "record-1")
	require.NoError(t, err)
	assert.False(t, dup)

	require.NoError(t, h.Execute(ctx))

	dup, err = svc.IsDuplicate(ctx, "record-1")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, "dedupe:record-1", h.Name())
}

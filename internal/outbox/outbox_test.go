package outbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduix/nodestream/internal/outbox"
)

func TestPutGetOrdering(t *testing.T) {
	ob := outbox.New(4)
	ctx := context.Background()

	require.NoError(t, ob.Put(ctx, "a", time.Second))
	require.NoError(t, ob.Put(ctx, "b", time.Second))
	require.NoError(t, ob.Put(ctx, "c", time.Second))

	for _, want := range []string{"a", "b", "c"} {
		item, status, err := ob.Get(ctx, time.Second)
		require.NoError(t, err)
		require.Equal(t, outbox.StatusOK, status)
		assert.Equal(t, want, item)
	}
}

func TestGetTimeoutReturnsEmptyNotError(t *testing.T) {
	ob := outbox.New(1)
	item, status, err := ob.Get(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.Equal(t, outbox.StatusEmpty, status)
}

func TestPutTimeoutOnFullBuffer(t *testing.T) {
	ob := outbox.New(1)
	ctx := context.Background()
	require.NoError(t, ob.Put(ctx, "full", time.Second))

	err := ob.Put(ctx, "overflow", 20*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, outbox.ErrTimeout))
	assert.Equal(t, outbox.TimeoutMessage, err.Error())
}

func TestCloseDrainsThenEnds(t *testing.T) {
	ob := outbox.New(4)
	ctx := context.Background()
	require.NoError(t, ob.Put(ctx, 1, time.Second))
	require.NoError(t, ob.Put(ctx, 2, time.Second))
	ob.Close()

	item, status, err := ob.Get(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, outbox.StatusOK, status)
	assert.Equal(t, 1, item)

	item, status, err = ob.Get(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, outbox.StatusOK, status)
	assert.Equal(t, 2, item)

	_, status, err = ob.Get(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusEnd, status)
}

func TestPutAfterCloseFails(t *testing.T) {
	ob := outbox.New(1)
	ob.Close()
	err := ob.Put(context.Background(), "x", time.Second)
	assert.ErrorIs(t, err, outbox.ErrClosed)
}

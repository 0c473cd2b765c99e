package executor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduix/nodestream/internal/executor"
	"github.com/conduix/nodestream/internal/model"
	"github.com/conduix/nodestream/internal/outbox"
	"github.com/conduix/nodestream/internal/stage"
)

// slowExtractor never finishes on its own and emits records without
// delay, used to fill a small output buffer and force a Put timeout.
type slowExtractor struct {
	emitted int
}

func (e *slowExtractor) Start(ctx context.Context) error { return nil }

func (e *slowExtractor) ExtractRecords(ctx context.Context) (<-chan model.Record, error) {
	ch := make(chan model.Record)
	go func() {
		defer close(ch)
		for i := 0; ; i++ {
			select {
			case ch <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (e *slowExtractor) Finish(ctx context.Context) error { return nil }

// immediateFailWriter fails the very first record it sees.
type immediateFailWriter struct{}

var errImmediate = errors.New("immediate failure")

func (w *immediateFailWriter) Start(ctx context.Context) error { return nil }
func (w *immediateFailWriter) WriteRecord(ctx context.Context, rec model.Record) error {
	return errImmediate
}
func (w *immediateFailWriter) Finish(ctx context.Context) error { return nil }

// passTransformer forwards every record unchanged.
type passTransformer struct{}

func (t *passTransformer) Start(ctx context.Context) error { return nil }
func (t *passTransformer) Transform(ctx context.Context, rec model.Record) ([]model.Record, error) {
	return []model.Record{rec}, nil
}
func (t *passTransformer) Finish(ctx context.Context) error { return nil }

// finishFailTransformer forwards every record but fails its Finish, the
// Go analogue of FailTransformer in the nodestream integration tests.
type finishFailTransformer struct{}

var errStop = errors.New("stop exception")

func (t *finishFailTransformer) Start(ctx context.Context) error { return nil }
func (t *finishFailTransformer) Transform(ctx context.Context, rec model.Record) ([]model.Record, error) {
	return []model.Record{rec}, nil
}
func (t *finishFailTransformer) Finish(ctx context.Context) error { return errStop }

func newFlag() *executor.FailureFlag { return &executor.FailureFlag{} }

// runConcurrently runs every executor in its own goroutine, as
// Pipeline.Run does, and returns a channel closed once all have returned.
func runConcurrently(ctx context.Context, execs ...*executor.StageExecutor) <-chan struct{} {
	var wg sync.WaitGroup
	for _, e := range execs {
		wg.Add(1)
		go func(e *executor.StageExecutor) {
			defer wg.Done()
			e.Run(ctx)
		}(e)
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// TestFullBufferPropagatesFailure mirrors
// test_error_propagation_on_full_buffer: a fast source feeds a small
// buffer into a writer that fails immediately. The source must observe
// the failure via precheck and stop instead of blocking forever on Put.
func TestFullBufferPropagatesFailure(t *testing.T) {
	sourceFlag := newFlag()
	writerFlag := newFlag()
	observer := executor.NewFailureObserver([]*executor.FailureFlag{sourceFlag, writerFlag})

	buf := outbox.New(2)

	src := executor.New("source", executor.KindExtractor, &slowExtractor{}, nil, nil,
		nil, buf, observer, sourceFlag, 20*time.Millisecond, nil)
	sink := executor.New("writer", executor.KindWriter, nil, nil, &immediateFailWriter{},
		buf, nil, observer, writerFlag, 20*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := runConcurrently(ctx, sink, src)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not converge within timeout")
	}

	require.True(t, sink.Error().HasError())
	assert.Equal(t, errImmediate, sink.Error().Exceptions[executor.WorkBodyException])

	require.True(t, src.Error().HasError())
	assert.ErrorIs(t, src.Error().Exceptions[executor.WorkBodyException], executor.ErrPrecheckAborted)
}

// TestImmediateWriterFailureStopsChain mirrors
// test_immediate_error_propagation_fails_all_steps: source -> transformer
// -> writer, writer fails immediately, and the failure must propagate
// back through the transformer to the source.
func TestImmediateWriterFailureStopsChain(t *testing.T) {
	sourceFlag := newFlag()
	transformFlag := newFlag()
	writerFlag := newFlag()
	observer := executor.NewFailureObserver([]*executor.FailureFlag{sourceFlag, transformFlag, writerFlag})

	first := outbox.New(4)
	second := outbox.New(4)

	src := executor.New("source", executor.KindExtractor, &slowExtractor{}, nil, nil,
		nil, first, observer, sourceFlag, 20*time.Millisecond, nil)
	mid := executor.New("transform", executor.KindTransformer, nil, &passTransformer{}, nil,
		first, second, observer, transformFlag, 20*time.Millisecond, nil)
	sink := executor.New("writer", executor.KindWriter, nil, nil, &immediateFailWriter{},
		second, nil, observer, writerFlag, 20*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := runConcurrently(ctx, sink, mid, src)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not converge within timeout")
	}

	assert.True(t, sink.Error().HasError())
	assert.True(t, mid.Error().HasError())
	assert.True(t, src.Error().HasError())
}

// TestFinishFailureIsRecordedAsStopException mirrors the FailTransformer
// teardown case: the stage body succeeds but Finish raises, and that must
// surface under StopException without being mistaken for a work-body
// failure.
func TestFinishFailureIsRecordedAsStopException(t *testing.T) {
	flag := newFlag()
	observer := executor.NewFailureObserver([]*executor.FailureFlag{flag})

	in := outbox.New(2)
	out := outbox.New(2)
	require.NoError(t, in.Put(context.Background(), "rec-1", time.Second))
	in.Close()

	mid := executor.New("transform", executor.KindTransformer, nil, &finishFailTransformer{}, nil,
		in, out, observer, flag, 20*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	mid.Run(ctx)

	require.True(t, mid.Error().HasError())
	assert.Equal(t, errStop, mid.Error().Exceptions[executor.StopException])
	_, hasWorkBody := mid.Error().Exceptions[executor.WorkBodyException]
	assert.False(t, hasWorkBody)
}

// TestFlushForwardedWithoutInvokingTransform checks that Flush passes
// through a middle stage untouched, never reaching Transform.
func TestFlushForwardedWithoutInvokingTransform(t *testing.T) {
	flag := newFlag()
	observer := executor.NewFailureObserver([]*executor.FailureFlag{flag})

	in := outbox.New(2)
	out := outbox.New(2)
	require.NoError(t, in.Put(context.Background(), model.Flush, time.Second))
	in.Close()

	tr := &countingTransformer{}
	mid := executor.New("transform", executor.KindTransformer, nil, tr, nil,
		in, out, observer, flag, 20*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	mid.Run(ctx)

	require.False(t, mid.Error().HasError())
	assert.Equal(t, 0, tr.calls)

	item, status, err := out.Get(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, outbox.StatusOK, status)
	assert.True(t, model.IsFlush(item))
}

type countingTransformer struct{ calls int }

func (t *countingTransformer) Start(ctx context.Context) error { return nil }
func (t *countingTransformer) Transform(ctx context.Context, rec model.Record) ([]model.Record, error) {
	t.calls++
	return []model.Record{rec}, nil
}
func (t *countingTransformer) Finish(ctx context.Context) error { return nil }

var _ stage.Transformer = (*countingTransformer)(nil)

// Package executor wraps a single Stage with its input/output outboxes,
// the precheck loop that observes sibling failure, and the structured
// StageError that captures whatever went wrong. It is the runtime layer
// between the bare Stage contract and the Pipeline that composes many
// executors together.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/conduix/nodestream/internal/model"
	"github.com/conduix/nodestream/internal/outbox"
	"github.com/conduix/nodestream/internal/stage"
)

// Kind identifies which Stage variant an executor wraps.
type Kind int

const (
	KindExtractor Kind = iota
	KindTransformer
	KindWriter
)

// DefaultTimeout is the short, fixed put/get timeout recommended by the
// concurrency model: small enough to bound failure-propagation latency,
// not meant as a correctness parameter callers tune per record size.
const DefaultTimeout = 100 * time.Millisecond

// StageExecutor owns one stage's lifecycle plus the input outbox it reads
// from (nil for a source) and the output outbox it writes to (nil for a
// sink).
type StageExecutor struct {
	name string
	kind Kind

	extractor   stage.Extractor
	transformer stage.Transformer
	writer      stage.Writer

	in  *outbox.Outbox
	out *outbox.Outbox

	observer *FailureObserver
	flag     *FailureFlag
	timeout  time.Duration
	logger   *slog.Logger

	err *StageError
}

// New builds a StageExecutor. Exactly one of extractor/transformer/writer
// should be non-nil, matching kind.
func New(
	name string,
	kind Kind,
	extractor stage.Extractor,
	transformer stage.Transformer,
	writer stage.Writer,
	in, out *outbox.Outbox,
	observer *FailureObserver,
	flag *FailureFlag,
	timeout time.Duration,
	logger *slog.Logger,
) *StageExecutor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StageExecutor{
		name:        name,
		kind:        kind,
		extractor:   extractor,
		transformer: transformer,
		writer:      writer,
		in:          in,
		out:         out,
		observer:    observer,
		flag:        flag,
		timeout:     timeout,
		logger:      logger.With("stage", name),
		err:         newStageError(name),
	}
}

// Error returns this executor's accumulated StageError. Valid after Run
// returns.
func (e *StageExecutor) Error() *StageError {
	return e.err
}

func (e *StageExecutor) fail(phase string, err error) {
	e.err.record(phase, err)
	e.flag.MarkFailed()
}

// Run drives the executor through start -> work -> finish. It never
// returns an error directly; failures are captured in e.err for the
// Pipeline to collect once every executor has terminated.
func (e *StageExecutor) Run(ctx context.Context) {
	switch e.kind {
	case KindExtractor:
		e.runSource(ctx)
	default:
		e.runSinkOrMiddle(ctx)
	}
}

func (e *StageExecutor) start(ctx context.Context) error {
	switch e.kind {
	case KindExtractor:
		return e.extractor.Start(ctx)
	case KindTransformer:
		return e.transformer.Start(ctx)
	default:
		return e.writer.Start(ctx)
	}
}

func (e *StageExecutor) finish(ctx context.Context) error {
	switch e.kind {
	case KindExtractor:
		return e.extractor.Finish(ctx)
	case KindTransformer:
		return e.transformer.Finish(ctx)
	default:
		return e.writer.Finish(ctx)
	}
}

// runFinish always calls finish exactly once, recording any teardown
// failure under StopException; by policy (the Open Question in the
// design notes), finish is only called when start already succeeded —
// runFinish is only ever reached along that path.
func (e *StageExecutor) runFinish(ctx context.Context) {
	if err := e.finish(ctx); err != nil {
		e.fail(StopException, err)
		e.logger.Error("stage finish failed", "error", err)
	}
}

func (e *StageExecutor) emitIndexes(ctx context.Context) bool {
	if e.kind != KindTransformer {
		return true
	}
	emitter, ok := e.transformer.(stage.IndexEmitter)
	if !ok {
		return true
	}
	for _, idx := range emitter.EmitIndexes(ctx) {
		if perr := e.out.Put(ctx, idx, e.timeout); perr != nil {
			e.fail(WorkBodyException, perr)
			e.out.Close()
			return false
		}
	}
	return true
}

// runSource drives the Extractor variant: start, stream records out with
// a precheck before every Put, and finish.
func (e *StageExecutor) runSource(ctx context.Context) {
	if err := e.start(ctx); err != nil {
		e.fail(StartException, err)
		e.logger.Error("stage start failed", "error", err)
		if e.out != nil {
			e.out.Close()
		}
		return
	}

	stream, err := e.extractor.ExtractRecords(ctx)
	if err != nil {
		e.fail(WorkBodyException, err)
		e.out.Close()
		e.runFinish(ctx)
		return
	}

loop:
	for {
		select {
		case rec, ok := <-stream:
			if !ok {
				break loop
			}

			if e.observer.AnyFailed() {
				e.fail(WorkBodyException, ErrPrecheckAborted)
				break loop
			}

			if perr := e.out.Put(ctx, rec, e.timeout); perr != nil {
				e.recordPutFailure(perr)
				break loop
			}

		case <-ctx.Done():
			e.fail(WorkBodyException, ctx.Err())
			break loop
		}
	}

	e.out.Close()
	e.runFinish(ctx)
}

// runSinkOrMiddle drives the Transformer and Writer variants: start,
// index-emit (Transformer only), then a get/precheck/body/put loop, then
// finish.
func (e *StageExecutor) runSinkOrMiddle(ctx context.Context) {
	if err := e.start(ctx); err != nil {
		e.fail(StartException, err)
		e.logger.Error("stage start failed", "error", err)
		if e.out != nil {
			e.out.Close()
		}
		return
	}

	if !e.emitIndexes(ctx) {
		e.runFinish(ctx)
		return
	}

loop:
	for {
		item, status, gerr := e.in.Get(ctx, e.timeout)
		switch status {
		case outbox.StatusEnd:
			break loop

		case outbox.StatusEmpty:
			if gerr != nil {
				e.fail(WorkBodyException, gerr)
				break loop
			}
			if e.observer.AnyFailed() {
				e.fail(WorkBodyException, ErrPrecheckAborted)
				break loop
			}
			continue loop

		case outbox.StatusOK:
			if model.IsFlush(item) {
				if e.out != nil {
					if perr := e.out.Put(ctx, item, e.timeout); perr != nil {
						e.recordPutFailure(perr)
						break loop
					}
				} else if fw, ok := e.writer.(stage.FlushableWriter); ok {
					if ferr := fw.Flush(ctx); ferr != nil {
						e.fail(WorkBodyException, ferr)
						break loop
					}
				}
				continue loop
			}

			if e.observer.AnyFailed() {
				e.fail(WorkBodyException, ErrPrecheckAborted)
				break loop
			}

			if !e.processAndForward(ctx, item) {
				break loop
			}
		}
	}

	if e.out != nil {
		e.out.Close()
	}
	e.runFinish(ctx)
}

// processAndForward runs the stage body on item and, for a Transformer,
// forwards every produced record downstream with the same
// timeout-and-precheck discipline used by the source. Returns false if
// the executor should abort its loop.
func (e *StageExecutor) processAndForward(ctx context.Context, item model.Record) bool {
	switch e.kind {
	case KindTransformer:
		results, err := e.transformer.Transform(ctx, item)
		if err != nil {
			e.fail(WorkBodyException, err)
			return false
		}
		for _, r := range results {
			if perr := e.out.Put(ctx, r, e.timeout); perr != nil {
				e.recordPutFailure(perr)
				return false
			}
		}
		return true

	default: // KindWriter
		if err := e.writer.WriteRecord(ctx, item); err != nil {
			e.fail(WorkBodyException, err)
			return false
		}
		return true
	}
}

func (e *StageExecutor) recordPutFailure(err error) {
	if errors.Is(err, outbox.ErrTimeout) {
		e.fail(WorkBodyException, outbox.ErrTimeout)
		return
	}
	e.fail(WorkBodyException, err)
}

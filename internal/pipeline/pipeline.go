// Package pipeline composes a source, zero or more transformers, and a
// sink into a set of executors sharing wired outboxes and a failure
// observer, runs them concurrently, and aggregates their errors into a
// single PipelineException, per the pipeline's composition contract.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conduix/nodestream/internal/executor"
	"github.com/conduix/nodestream/internal/outbox"
	"github.com/conduix/nodestream/internal/stage"
)

// StageSpec names one stage to be wired into a Pipeline. Exactly one of
// Extractor/Transformer/Writer must be set, and stages must be supplied
// in source-to-sink order.
type StageSpec struct {
	Name        string
	Extractor   stage.Extractor
	Transformer stage.Transformer
	Writer      stage.Writer
}

func (s StageSpec) kind() executor.Kind {
	switch {
	case s.Extractor != nil:
		return executor.KindExtractor
	case s.Writer != nil:
		return executor.KindWriter
	default:
		return executor.KindTransformer
	}
}

// Options configures the buffer capacity and put/get timeout shared by
// every outbox in the pipeline.
type Options struct {
	// BufferCapacity is B, the capacity of every inter-stage outbox.
	BufferCapacity int
	// Timeout is the put/get timeout every executor uses. Defaults to
	// executor.DefaultTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Pipeline is a wired, runnable chain of stage executors.
type Pipeline struct {
	runID     string
	executors []*executor.StageExecutor
	logger    *slog.Logger
}

// New wires stages into a Pipeline. stages must be supplied in
// source-to-sink order: the first must be a source (Extractor set), the
// last a sink (Writer set), and every stage in between a Transformer.
func New(stages []StageSpec, opts Options) *Pipeline {
	if opts.BufferCapacity <= 0 {
		opts.BufferCapacity = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = executor.DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.New().String()
	logger = logger.With("run_id", runID)

	flags := make([]*executor.FailureFlag, len(stages))
	for i := range flags {
		flags[i] = &executor.FailureFlag{}
	}
	observer := executor.NewFailureObserver(flags)

	outboxes := make([]*outbox.Outbox, len(stages)-1)
	for i := range outboxes {
		outboxes[i] = outbox.New(opts.BufferCapacity)
	}

	executors := make([]*executor.StageExecutor, len(stages))
	for i, spec := range stages {
		var in, out *outbox.Outbox
		if i > 0 {
			in = outboxes[i-1]
		}
		if i < len(outboxes) {
			out = outboxes[i]
		}
		executors[i] = executor.New(
			spec.Name,
			spec.kind(),
			spec.Extractor,
			spec.Transformer,
			spec.Writer,
			in, out,
			observer,
			flags[i],
			opts.Timeout,
			logger,
		)
	}

	return &Pipeline{runID: runID, executors: executors, logger: logger}
}

// RunID identifies this Pipeline instance across its log lines; it has
// no bearing on correctness (no checkpointing keys off it) and exists
// purely to correlate one run's log output, the way the teacher's
// provisioners stamp every result with a fresh uuid.New().String().
func (p *Pipeline) RunID() string {
	return p.runID
}

// Run starts every executor concurrently and blocks until all have
// terminated. It returns a *executor.PipelineException if any executor
// recorded a failure, preserving construction order, or nil on a clean
// run.
func (p *Pipeline) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(len(p.executors))
	for _, e := range p.executors {
		e := e
		go func() {
			defer wg.Done()
			e.Run(ctx)
		}()
	}
	wg.Wait()

	var errs []*executor.StageError
	anyFailed := false
	for _, e := range p.executors {
		se := e.Error()
		errs = append(errs, se)
		if se.HasError() {
			anyFailed = true
		}
	}
	if !anyFailed {
		p.logger.Info("pipeline completed")
		return nil
	}
	p.logger.Error("pipeline failed", "stages", len(errs))
	return &executor.PipelineException{Errors: errs}
}

// Package stage defines the three stage variants the pipeline runtime
// drives through their start -> work -> finish lifecycle: Extractor
// (source), Transformer (middle), and Writer (sink). Concrete
// implementations — file/HTTP/Kafka extractors, Elasticsearch/Mongo
// writers, the Interpreter transformer — live in sibling packages and are
// out of this package's concern; it only defines the contract every
// stage honors, per the pipeline's Stage Contract.
package stage

import (
	"context"

	"github.com/conduix/nodestream/internal/model"
)

// Extractor is the source variant: it produces a lazy stream of records.
// The stream may be finite or infinite and is not restartable.
type Extractor interface {
	// Start performs optional one-time setup before any record is
	// extracted.
	Start(ctx context.Context) error

	// ExtractRecords returns a channel the executor reads from until it
	// is closed. The extractor owns the channel and must close it (or
	// let ctx cancellation end the read) when the underlying source is
	// exhausted.
	ExtractRecords(ctx context.Context) (<-chan model.Record, error)

	// Finish performs one-time teardown, called exactly once after the
	// last record or after an abort — but only if Start succeeded.
	Finish(ctx context.Context) error
}

// Transformer is the middle variant: it maps one input record to
// zero-or-more output records. The executor forwards Flush to every
// Transformer without invoking Transform, so implementations never see
// Flush here.
type Transformer interface {
	Start(ctx context.Context) error
	Transform(ctx context.Context, record model.Record) ([]model.Record, error)
	Finish(ctx context.Context) error
}

// IndexEmitter is an optional capability a Transformer may implement to
// emit descriptors that must precede any data record — the Interpreter's
// index descriptors being the motivating case. The executor calls
// EmitIndexes exactly once, immediately after a successful Start and
// before the first record is pulled, satisfying "indexes are emitted
// exactly once per run, before any data record."
type IndexEmitter interface {
	EmitIndexes(ctx context.Context) []model.Record
}

// Writer is the sink variant: it consumes records and produces nothing
// back into the pipeline. Writers must honor Flush by flushing any
// in-flight batch to the underlying store; as with Transformer, the
// executor never calls WriteRecord with Flush — a Writer that wants to
// react to Flush implements FlushableWriter.
type Writer interface {
	Start(ctx context.Context) error
	WriteRecord(ctx context.Context, record model.Record) error
	Finish(ctx context.Context) error
}

// FlushableWriter is the optional capability a Writer implements to react
// to the Flush control token (e.g. force any buffered batch out to the
// underlying store). Writers that do not buffer may skip it.
type FlushableWriter interface {
	Flush(ctx context.Context) error
}

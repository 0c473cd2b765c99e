package load

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/conduix/nodestream/internal/model"
)

// ConsoleWriter logs every ingest and index descriptor it receives
// instead of writing to a real store; useful for local development, the
// Go analogue of StubSink.
type ConsoleWriter struct {
	logger *slog.Logger
	nodes  atomic.Int64
	rels   atomic.Int64
}

// NewConsoleWriter builds a ConsoleWriter that logs via logger (or
// slog.Default() if nil).
func NewConsoleWriter(logger *slog.Logger) *ConsoleWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleWriter{logger: logger.With("writer", "console")}
}

func (w *ConsoleWriter) Start(ctx context.Context) error {
	w.logger.Info("console writer started")
	return nil
}

func (w *ConsoleWriter) Finish(ctx context.Context) error {
	w.logger.Info("console writer finished", "nodes", w.nodes.Load(), "relationships", w.rels.Load())
	return nil
}

func (w *ConsoleWriter) WriteRecord(ctx context.Context, record model.Record) error {
	switch rec := record.(type) {
	case *model.DesiredIngest:
		w.nodes.Add(int64(len(rec.Nodes)))
		w.rels.Add(int64(len(rec.Relationships)))
		w.logger.Debug("ingest", "nodes", len(rec.Nodes), "relationships", len(rec.Relationships), "hooks", len(rec.Hooks))
	case model.KeyIndex:
		w.logger.Info("key index", "node_type", rec.NodeType, "fields", rec.Fields)
	case model.FieldIndex:
		w.logger.Info("field index", "node_type", rec.NodeType, "field", rec.Field)
	case model.TimeToLiveConfiguration:
		w.logger.Info("ttl configuration", "node_type", rec.NodeType, "field", rec.ExpiryField)
	default:
		w.logger.Debug("record", "value", rec)
	}
	return nil
}

func (w *ConsoleWriter) Flush(ctx context.Context) error {
	w.logger.Debug("flush")
	return nil
}

// Package load provides concrete Writer implementations: a console stub
// for local runs, and Elasticsearch/Mongo writers grounded on the
// teacher's provisioner shapes and on nodestream's chunked,
// retrying Neo4jQueryExecutor.
package load

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/conduix/nodestream/internal/model"
)

// BatchExecutor is the per-operation-shape write a concrete store
// backend supplies: given a batch of same-shape nodes or relationships,
// perform the upsert. Writers group a DesiredIngest by
// OperationOnNodeIdentity/OperationOnRelationshipIdentity (as
// DesiredIngest.NodeOperations/RelationshipOperations already do) so one
// BatchExecutor call can issue a single parameterized statement per
// shape, mirroring Neo4jQueryExecutor.upsert_nodes_in_bulk_with_same_operation.
type BatchExecutor interface {
	UpsertNodes(ctx context.Context, op model.OperationOnNodeIdentity, nodes []*model.Node) error
	UpsertRelationships(ctx context.Context, op model.OperationOnRelationshipIdentity, rels []*model.Relationship) error
	UpsertKeyIndex(ctx context.Context, idx model.KeyIndex) error
	UpsertFieldIndex(ctx context.Context, idx model.FieldIndex) error
	PerformTTL(ctx context.Context, cfg model.TimeToLiveConfiguration) error
	ExecuteHook(ctx context.Context, hook model.IngestionHook) error
}

// ChunkedRetryConfig controls batching and retry behavior shared by every
// BatchExecutor-backed writer, following Neo4jQueryExecutor's chunk_size
// and retries_per_chunk knobs. There is no parallel-chunk option: chunks
// are always executed one after another.
type ChunkedRetryConfig struct {
	ChunkSize    int
	RetriesPerOp int
	RetryBackoff time.Duration
}

func (c ChunkedRetryConfig) withDefaults() ChunkedRetryConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.RetriesPerOp <= 0 {
		c.RetriesPerOp = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 50 * time.Millisecond
	}
	return c
}

// StoreWriter is a stage.Writer that accumulates DesiredIngest records
// and, on every Flush (or on Finish), groups them by operation shape and
// hands each chunk to a BatchExecutor, with retries per chunk.
type StoreWriter struct {
	executor BatchExecutor
	cfg      ChunkedRetryConfig
	logger   *slog.Logger

	pending *model.DesiredIngest
}

// NewStoreWriter builds a StoreWriter around executor.
func NewStoreWriter(executor BatchExecutor, cfg ChunkedRetryConfig, logger *slog.Logger) *StoreWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreWriter{
		executor: executor,
		cfg:      cfg.withDefaults(),
		logger:   logger.With("writer", "store"),
		pending:  model.NewDesiredIngest(),
	}
}

func (w *StoreWriter) Start(ctx context.Context) error { return nil }

func (w *StoreWriter) Finish(ctx context.Context) error {
	return w.flushPending(ctx)
}

// WriteRecord accepts either a *model.DesiredIngest (from the
// Interpreter) or an index descriptor (model.KeyIndex / model.FieldIndex
// / model.TimeToLiveConfiguration), applying indexes immediately and
// buffering ingests until the next Flush.
func (w *StoreWriter) WriteRecord(ctx context.Context, record model.Record) error {
	switch rec := record.(type) {
	case *model.DesiredIngest:
		w.merge(rec)
		return nil
	case model.KeyIndex:
		return w.executor.UpsertKeyIndex(ctx, rec)
	case model.FieldIndex:
		return w.executor.UpsertFieldIndex(ctx, rec)
	case model.TimeToLiveConfiguration:
		return w.executor.PerformTTL(ctx, rec)
	default:
		return fmt.Errorf("store writer: unsupported record type %T", record)
	}
}

// Flush forces any buffered ingest out to the store, the write-side
// counterpart to the Flush control token.
func (w *StoreWriter) Flush(ctx context.Context) error {
	return w.flushPending(ctx)
}

func (w *StoreWriter) merge(ingest *model.DesiredIngest) {
	for _, n := range ingest.Nodes {
		w.pending.AddNode(n.Identity, n.Properties)
	}
	for _, r := range ingest.Relationships {
		w.pending.AddRelationship(r.Type, r.From, r.To, r.Properties)
	}
	w.pending.Hooks = append(w.pending.Hooks, ingest.Hooks...)
}

func (w *StoreWriter) flushPending(ctx context.Context) error {
	if len(w.pending.Nodes) == 0 && len(w.pending.Relationships) == 0 && len(w.pending.Hooks) == 0 {
		return nil
	}

	nodesByOp := make(map[string][]*model.Node)
	for _, n := range w.pending.Nodes {
		key := n.Identity.Type + "|" + strings.Join(n.Identity.KeyFieldNames(), ",")
		nodesByOp[key] = append(nodesByOp[key], n)
	}
	for _, op := range w.pending.NodeOperations() {
		nodes := nodesByOp[op.NodeType+"|"+strings.Join(op.KeyFields, ",")]
		if err := w.upsertNodeChunks(ctx, op, nodes); err != nil {
			return err
		}
	}

	relsByOp := make(map[string][]*model.Relationship)
	for _, r := range w.pending.Relationships {
		key := r.Type + "|" + r.From.Type + "|" + strings.Join(r.From.KeyFieldNames(), ",") +
			"|" + r.To.Type + "|" + strings.Join(r.To.KeyFieldNames(), ",")
		relsByOp[key] = append(relsByOp[key], r)
	}
	for _, op := range w.pending.RelationshipOperations() {
		key := op.RelationshipType + "|" + op.FromType + "|" + strings.Join(op.FromKeyFields, ",") +
			"|" + op.ToType + "|" + strings.Join(op.ToKeyFields, ",")
		rels := relsByOp[key]
		if err := w.upsertRelationshipChunks(ctx, op, rels); err != nil {
			return err
		}
	}

	for _, hook := range w.pending.Hooks {
		if err := w.runWithRetry(ctx, func(ctx context.Context) error {
			return w.executor.ExecuteHook(ctx, hook)
		}); err != nil {
			return err
		}
	}

	w.pending = model.NewDesiredIngest()
	return nil
}

func (w *StoreWriter) upsertNodeChunks(ctx context.Context, op model.OperationOnNodeIdentity, nodes []*model.Node) error {
	for start := 0; start < len(nodes); start += w.cfg.ChunkSize {
		end := start + w.cfg.ChunkSize
		if end > len(nodes) {
			end = len(nodes)
		}
		chunk := nodes[start:end]
		if err := w.runWithRetry(ctx, func(ctx context.Context) error {
			return w.executor.UpsertNodes(ctx, op, chunk)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (w *StoreWriter) upsertRelationshipChunks(ctx context.Context, op model.OperationOnRelationshipIdentity, rels []*model.Relationship) error {
	for start := 0; start < len(rels); start += w.cfg.ChunkSize {
		end := start + w.cfg.ChunkSize
		if end > len(rels) {
			end = len(rels)
		}
		chunk := rels[start:end]
		if err := w.runWithRetry(ctx, func(ctx context.Context) error {
			return w.executor.UpsertRelationships(ctx, op, chunk)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (w *StoreWriter) runWithRetry(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < w.cfg.RetriesPerOp; attempt++ {
		if err := op(ctx); err != nil {
			lastErr = err
			w.logger.Debug("batch op failed, retrying", "attempt", attempt+1, "error", err)
			select {
			case <-time.After(w.cfg.RetryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("batch op failed after %d retries: %w", w.cfg.RetriesPerOp, lastErr)
}

package interpreting

import (
	"context"
	"fmt"

	"github.com/conduix/nodestream/internal/dedupe"
	"github.com/conduix/nodestream/internal/model"
	"github.com/conduix/nodestream/internal/stage"
)

// Interpreter is the Transformer that turns records into
// graph-ingestion intents: it wraps a main interpretation pass, an
// optional global-enrichment pass applied to every record before
// decomposition, and a record decomposer.
//
// Per the design notes' global-enrichment edge case: if GlobalEnrichment
// ever produces more than one context (e.g. it is itself a
// MultiSequencePass), only the first is used as the basis for
// decomposition — an explicit, eager evaluation, unlike the Python
// original this was ported from, where the equivalent generator was
// never actually iterated and so never ran at all. Iterating zero times
// there was a latent bug; here Apply always executes in full.
//
// Dedupe and DedupeKey are optional: when both are set, Transform checks
// Dedupe.IsDuplicate for each decomposed sub-context's resolved key
// before running the main pass over it, skipping (not re-emitting) any
// ingest for a key already processed within the service's TTL window,
// and attaches a dedupe.Hook to every emitted DesiredIngest so a writer
// that executes hooks marks the key processed once the write succeeds.
type Interpreter struct {
	Main             Pass
	GlobalEnrichment Pass
	Decomposer       RecordDecomposer
	Dedupe           dedupe.Service
	DedupeKey        ValueSource
}

// NewInterpreter builds an Interpreter. globalEnrichment may be nil, in
// which case it is treated as NullPass.
func NewInterpreter(main Pass, globalEnrichment Pass, decomposer RecordDecomposer) *Interpreter {
	if globalEnrichment == nil {
		globalEnrichment = NullPass{}
	}
	return &Interpreter{Main: main, GlobalEnrichment: globalEnrichment, Decomposer: decomposer}
}

func (i *Interpreter) Start(ctx context.Context) error { return nil }

func (i *Interpreter) Finish(ctx context.Context) error { return nil }

// EmitIndexes gathers every index descriptor from both the global
// enrichment pass and the main pass, deduplicated, in tree order. The
// executor calls this exactly once, before the first record.
func (i *Interpreter) EmitIndexes(ctx context.Context) []model.Record {
	var collected []model.IndexDescriptor
	i.GlobalEnrichment.gatherIndexes(&collected)
	i.Main.gatherIndexes(&collected)
	deduped := dedupeIndexes(collected)

	out := make([]model.Record, len(deduped))
	for idx, d := range deduped {
		out[idx] = d
	}
	return out
}

// Transform builds a fresh context from record, applies global
// enrichment, decomposes into sub-contexts, applies the main pass to
// each, and emits one DesiredIngest per resulting context, in
// decomposition-then-interpretation order.
func (i *Interpreter) Transform(ctx context.Context, record model.Record) ([]model.Record, error) {
	base := model.FreshContext(record)

	enriched := i.GlobalEnrichment.Apply(base)
	if len(enriched) == 0 {
		return nil, nil
	}
	base = enriched[0]

	subContexts := i.Decomposer.Decompose(base)

	var results []model.Record
	for _, sub := range subContexts {
		var dedupeKey string
		if i.Dedupe != nil && i.DedupeKey != nil {
			dedupeKey = fmt.Sprint(i.DedupeKey.Resolve(sub))
			dup, err := i.Dedupe.IsDuplicate(ctx, dedupeKey)
			if err != nil {
				return nil, fmt.Errorf("dedupe check: %w", err)
			}
			if dup {
				continue
			}
		}

		for _, applied := range i.Main.Apply(sub) {
			if i.Dedupe != nil && i.DedupeKey != nil {
				applied.Ingest.AddHook(dedupe.Hook{Service: i.Dedupe, ID: dedupeKey})
			}
			results = append(results, applied.Ingest)
		}
	}
	return results, nil
}

var (
	_ stage.Transformer = (*Interpreter)(nil)
	_ stage.IndexEmitter = (*Interpreter)(nil)
)

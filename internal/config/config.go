// Package config parses a YAML pipeline descriptor and builds the
// extractors, writers, and interpretation-pass tree it declares. It is
// deliberately kept outside internal/pipeline and internal/interpreting
// so the runtime core has zero dependency on file formats, following
// the design notes' "parsing lives at the edges" guidance — the
// analogue of nodestream's declarative __declarative_init__ /
// from_file_arguments classmethods, reshaped around gopkg.in/yaml.v3
// decoding instead of a Python plugin loader.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/conduix/nodestream/internal/dedupe"
	"github.com/conduix/nodestream/internal/extract"
	"github.com/conduix/nodestream/internal/interpreting"
	"github.com/conduix/nodestream/internal/load"
	"github.com/conduix/nodestream/internal/stage"
)

// PipelineDescriptor is the root of a pipeline YAML file.
type PipelineDescriptor struct {
	Name           string             `yaml:"name"`
	BufferCapacity int                `yaml:"buffer_capacity,omitempty"`
	TimeoutMillis  int                `yaml:"timeout_ms,omitempty"`
	Source         SourceDescriptor   `yaml:"source"`
	Interpretation InterpretDescriptor `yaml:"interpretation"`
	Output         OutputDescriptor   `yaml:"output"`
}

// SourceDescriptor selects and configures an Extractor.
type SourceDescriptor struct {
	Type string `yaml:"type"` // file, kafka, sql

	// file
	Paths  []string `yaml:"paths,omitempty"`
	Format string   `yaml:"format,omitempty"`

	// kafka
	Brokers []string `yaml:"brokers,omitempty"`
	Topics  []string `yaml:"topics,omitempty"`
	GroupID string   `yaml:"group_id,omitempty"`

	// sql
	Driver string `yaml:"driver,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
	Query  string `yaml:"query,omitempty"`
}

// OutputDescriptor selects and configures a Writer.
type OutputDescriptor struct {
	Type string `yaml:"type"` // console, elasticsearch, mongo

	Addresses []string `yaml:"addresses,omitempty"`
	Username  string   `yaml:"username,omitempty"`
	Password  string   `yaml:"password,omitempty"`

	URI      string `yaml:"uri,omitempty"`
	Database string `yaml:"database,omitempty"`

	ChunkSize    int `yaml:"chunk_size,omitempty"`
	RetriesPerOp int `yaml:"retries_per_op,omitempty"`
}

// InterpretDescriptor configures the Interpreter transformer: the main
// interpretation pass (nested-list shaped exactly like nodestream's
// interpretations: argument), an optional global_enrichment pass, and an
// optional iterate_on field name.
type InterpretDescriptor struct {
	Interpretations  []any             `yaml:"interpretations"`
	GlobalEnrichment []any             `yaml:"global_enrichment,omitempty"`
	IterateOn        string            `yaml:"iterate_on,omitempty"`
	Dedupe           *DedupeDescriptor `yaml:"dedupe,omitempty"`
}

// DedupeDescriptor configures the Interpreter's optional skip-on-replay
// behavior: a Redis-backed Service keyed on a field of the raw record,
// per SPEC_FULL.md's "skip re-emitting an ingest for an already-processed
// natural key within a TTL window."
type DedupeDescriptor struct {
	RedisAddr  string `yaml:"redis_addr"`
	Prefix     string `yaml:"prefix,omitempty"`
	TTLSeconds int    `yaml:"ttl_seconds,omitempty"`
	KeyField   string `yaml:"key_field"`
}

// LoadPipelineDescriptor reads and parses path.
func LoadPipelineDescriptor(path string) (*PipelineDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline config: %w", err)
	}

	var desc PipelineDescriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parse pipeline config: %w", err)
	}
	return &desc, nil
}

// BuildExtractor constructs the Extractor named by d.
func BuildExtractor(d SourceDescriptor) (stage.Extractor, error) {
	switch d.Type {
	case "file":
		return extract.NewFileExtractor(d.Paths, extract.Format(d.Format))
	case "kafka":
		return extract.NewKafkaExtractor(extract.KafkaConfig{
			Brokers: d.Brokers,
			Topics:  d.Topics,
			GroupID: d.GroupID,
		}), nil
	case "sql":
		return extract.NewSQLExtractor(extract.SQLConfig{
			Driver: d.Driver,
			DSN:    d.DSN,
			Query:  d.Query,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", d.Type)
	}
}

// BuildWriter constructs the Writer named by d. ctx bounds the initial
// connection attempt for backends that dial eagerly (mongo).
func BuildWriter(ctx context.Context, d OutputDescriptor) (stage.Writer, error) {
	switch d.Type {
	case "", "console":
		return load.NewConsoleWriter(nil), nil
	case "elasticsearch":
		exec, err := load.NewElasticsearchExecutor(d.Addresses, d.Username, d.Password)
		if err != nil {
			return nil, err
		}
		return load.NewStoreWriter(exec, load.ChunkedRetryConfig{
			ChunkSize:    d.ChunkSize,
			RetriesPerOp: d.RetriesPerOp,
		}, nil), nil
	case "mongo":
		exec, err := load.NewMongoExecutor(ctx, d.URI, d.Database)
		if err != nil {
			return nil, err
		}
		return load.NewStoreWriter(exec, load.ChunkedRetryConfig{
			ChunkSize:    d.ChunkSize,
			RetriesPerOp: d.RetriesPerOp,
		}, nil), nil
	default:
		return nil, fmt.Errorf("unsupported output type: %s", d.Type)
	}
}

// TimeoutOrDefault returns the descriptor's configured put/get timeout,
// or zero if unset (letting the pipeline apply its own default).
func (p *PipelineDescriptor) TimeoutOrDefault() time.Duration {
	if p.TimeoutMillis <= 0 {
		return 0
	}
	return time.Duration(p.TimeoutMillis) * time.Millisecond
}

// BuildInterpreter builds the Interpreter transformer described by d,
// dispatching interpretation pass shapes the way
// InterpretationPass.from_file_arguments does: nil means NullPass, a
// list-of-lists means MultiSequencePass, any other list means
// SingleSequencePass.
func BuildInterpreter(d InterpretDescriptor) (*interpreting.Interpreter, error) {
	main, err := PassFromArguments(d.Interpretations)
	if err != nil {
		return nil, fmt.Errorf("main interpretations: %w", err)
	}
	enrichment, err := PassFromArguments(d.GlobalEnrichment)
	if err != nil {
		return nil, fmt.Errorf("global enrichment: %w", err)
	}

	interp := interpreting.NewInterpreter(main, enrichment, interpreting.RecordDecomposer{IterateOn: d.IterateOn})
	if d.Dedupe != nil {
		if d.Dedupe.KeyField == "" {
			return nil, fmt.Errorf("dedupe: key_field is required")
		}
		interp.Dedupe = dedupe.NewRedisService(
			d.Dedupe.RedisAddr,
			d.Dedupe.Prefix,
			time.Duration(d.Dedupe.TTLSeconds)*time.Second,
		)
		interp.DedupeKey = interpreting.FieldRef{Field: d.Dedupe.KeyField}
	}
	return interp, nil
}

// PassFromArguments mirrors InterpretationPass.from_file_arguments: args
// == nil yields NullPass; if the first element is itself a list, the
// whole thing is a MultiSequencePass over each sub-list; otherwise it is
// a SingleSequencePass of interpretations parsed from each element.
func PassFromArguments(args []any) (interpreting.Pass, error) {
	if len(args) == 0 {
		return interpreting.NullPass{}, nil
	}

	if _, ok := args[0].([]any); ok {
		branches := make([]interpreting.Pass, 0, len(args))
		for _, arg := range args {
			sub, ok := arg.([]any)
			if !ok {
				return nil, fmt.Errorf("multi-sequence pass expects every branch to be a list")
			}
			branch, err := PassFromArguments(sub)
			if err != nil {
				return nil, err
			}
			branches = append(branches, branch)
		}
		return interpreting.NewMultiSequencePass(branches...), nil
	}

	interpretations := make([]interpreting.Interpretation, 0, len(args))
	for _, arg := range args {
		spec, ok := arg.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("interpretation entry must be a mapping, got %T", arg)
		}
		interp, err := InterpretationFromArguments(spec)
		if err != nil {
			return nil, err
		}
		interpretations = append(interpretations, interp)
	}
	return interpreting.NewSingleSequencePass(interpretations...), nil
}

package config_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conduix/nodestream/internal/config"
	"github.com/conduix/nodestream/internal/interpreting"
	"github.com/conduix/nodestream/internal/model"
)

func parseArgs(t *testing.T, doc string) []any {
	t.Helper()
	var args []any
	require.NoError(t, yaml.Unmarshal([]byte(doc), &args))
	return args
}

func TestPassFromArgumentsNilYieldsNull(t *testing.T) {
	pass, err := config.PassFromArguments(nil)
	require.NoError(t, err)
	_, ok := pass.(interpreting.NullPass)
	assert.True(t, ok)
}

func TestPassFromArgumentsFlatListYieldsSingleSequence(t *testing.T) {
	args := parseArgs(t, `
- type: set_variable
  name: greeting
  value:
    value: hello
- type: add_node
  node_type: Person
  keys:
    id:
      field: id
  properties:
    greeting:
      variable: greeting
`)

	pass, err := config.PassFromArguments(args)
	require.NoError(t, err)

	single, ok := pass.(*interpreting.SingleSequencePass)
	require.True(t, ok)
	require.Len(t, single.Interpretations, 2)

	ctx := model.FreshContext(map[string]any{"id": "p1"})
	results := pass.Apply(ctx)
	require.Len(t, results, 1)
	assert.Equal(t, "hello", results[0].Ingest.Nodes[0].Properties["greeting"])
}

func TestPassFromArgumentsNestedListYieldsMultiSequence(t *testing.T) {
	args := parseArgs(t, `
-
  - type: add_node
    node_type: Person
    keys:
      id:
        field: id
-
  - type: add_node
    node_type: Company
    keys:
      id:
        field: company_id
`)

	pass, err := config.PassFromArguments(args)
	require.NoError(t, err)

	multi, ok := pass.(*interpreting.MultiSequencePass)
	require.True(t, ok)
	require.Len(t, multi.Branches, 2)

	ctx := model.FreshContext(map[string]any{"id": "p1", "company_id": "c1"})
	results := pass.Apply(ctx)
	require.Len(t, results, 2)
	assert.Equal(t, "Person", results[0].Ingest.Nodes[0].Identity.Type)
	assert.Equal(t, "Company", results[1].Ingest.Nodes[0].Identity.Type)
}

func TestBuildExtractorUnsupportedType(t *testing.T) {
	_, err := config.BuildExtractor(config.SourceDescriptor{Type: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestBuildWriterConsoleDefault(t *testing.T) {
	w, err := config.BuildWriter(context.Background(), config.OutputDescriptor{})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Finish(context.Background()))
}

func TestBuildInterpreterWiresDedupeFromDescriptor(t *testing.T) {
	interp, err := config.BuildInterpreter(config.InterpretDescriptor{
		Dedupe: &config.DedupeDescriptor{
			RedisAddr: "localhost:6379",
			KeyField:  "id",
		},
	})
	require.NoError(t, err)
	assert.NotNil(t, interp.Dedupe)
	assert.Equal(t, interpreting.FieldRef{Field: "id"}, interp.DedupeKey)
}

func TestBuildInterpreterDedupeRequiresKeyField(t *testing.T) {
	_, err := config.BuildInterpreter(config.InterpretDescriptor{
		Dedupe: &config.DedupeDescriptor{RedisAddr: "localhost:6379"},
	})
	assert.Error(t, err)
}

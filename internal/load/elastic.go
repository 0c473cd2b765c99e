package load

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/conduix/nodestream/internal/model"
)

// ElasticsearchExecutor is a BatchExecutor backed by
// elastic/go-elasticsearch/v8. Nodes and relationships are upserted
// document-by-document via the Bulk API, one bulk request per chunk
// handed down by StoreWriter; index descriptors create or update the
// target index's mapping instead of a document index.
type ElasticsearchExecutor struct {
	client *elasticsearch.Client
}

// NewElasticsearchExecutor builds an ElasticsearchExecutor over the
// given addresses.
func NewElasticsearchExecutor(addresses []string, username, password string) (*ElasticsearchExecutor, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Username:  username,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &ElasticsearchExecutor{client: client}, nil
}

func indexNameForNodeType(nodeType string) string {
	return strings.ToLower(nodeType)
}

func (e *ElasticsearchExecutor) UpsertNodes(ctx context.Context, op model.OperationOnNodeIdentity, nodes []*model.Node) error {
	var buf bytes.Buffer
	index := indexNameForNodeType(op.NodeType)
	for _, n := range nodes {
		meta := map[string]any{"index": map[string]any{"_index": index, "_id": n.Identity.Key()}}
		metaLine, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')

		doc, err := json.Marshal(n.Properties)
		if err != nil {
			return err
		}
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	res, err := esapi.BulkRequest{Body: &buf}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("bulk upsert nodes: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk upsert nodes: %s", res.String())
	}
	return nil
}

func (e *ElasticsearchExecutor) UpsertRelationships(ctx context.Context, op model.OperationOnRelationshipIdentity, rels []*model.Relationship) error {
	var buf bytes.Buffer
	index := strings.ToLower(op.RelationshipType)
	for _, r := range rels {
		doc := map[string]any{
			"from":       r.From.Key(),
			"to":         r.To.Key(),
			"properties": r.Properties,
		}
		id := r.From.Key() + "->" + r.To.Key()
		meta := map[string]any{"index": map[string]any{"_index": index, "_id": id}}
		metaLine, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')

		docLine, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	res, err := esapi.BulkRequest{Body: &buf}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("bulk upsert relationships: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk upsert relationships: %s", res.String())
	}
	return nil
}

func (e *ElasticsearchExecutor) UpsertKeyIndex(ctx context.Context, idx model.KeyIndex) error {
	props := make(map[string]any, len(idx.Fields))
	for _, f := range idx.Fields {
		props[f] = map[string]any{"type": "keyword"}
	}
	body, err := json.Marshal(map[string]any{
		"mappings": map[string]any{"properties": props},
	})
	if err != nil {
		return err
	}

	res, err := esapi.IndicesCreateRequest{
		Index: indexNameForNodeType(idx.NodeType),
		Body:  bytes.NewReader(body),
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("create key index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return fmt.Errorf("create key index: %s", res.String())
	}
	return nil
}

func (e *ElasticsearchExecutor) UpsertFieldIndex(ctx context.Context, idx model.FieldIndex) error {
	body, err := json.Marshal(map[string]any{
		"properties": map[string]any{
			idx.Field: map[string]any{"type": "keyword"},
		},
	})
	if err != nil {
		return err
	}

	res, err := esapi.IndicesPutMappingRequest{
		Index: []string{indexNameForNodeType(idx.NodeType)},
		Body:  bytes.NewReader(body),
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("update field index mapping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("update field index mapping: %s", res.String())
	}
	return nil
}

func (e *ElasticsearchExecutor) PerformTTL(ctx context.Context, cfg model.TimeToLiveConfiguration) error {
	if !cfg.EnabledOverall {
		return nil
	}
	query := map[string]any{
		"query": map[string]any{
			"range": map[string]any{cfg.ExpiryField: map[string]any{"lt": "now"}},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return err
	}

	res, err := esapi.DeleteByQueryRequest{
		Index: []string{indexNameForNodeType(cfg.NodeType)},
		Body:  bytes.NewReader(body),
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("ttl sweep: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ttl sweep: %s", res.String())
	}
	return nil
}

// executableHook is the optional capability an IngestionHook implements
// when it carries its own side effect (e.g. dedupe.Hook) rather than one
// expressed as a store-specific query, nodestream's
// as_cypher_query_and_parameters contract having no single cross-store
// equivalent.
type executableHook interface {
	Execute(ctx context.Context) error
}

func (e *ElasticsearchExecutor) ExecuteHook(ctx context.Context, hook model.IngestionHook) error {
	if eh, ok := hook.(executableHook); ok {
		return eh.Execute(ctx)
	}
	return nil
}

var _ BatchExecutor = (*ElasticsearchExecutor)(nil)

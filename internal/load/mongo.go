package load

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/conduix/nodestream/internal/model"
)

// MongoExecutor is a BatchExecutor backed by go.mongodb.org/mongo-driver.
// Nodes and relationships are upserted via BulkWrite with one
// ReplaceOneModel per item, filtering on the identity key the way the
// Elasticsearch executor filters on document id.
type MongoExecutor struct {
	client   *mongo.Client
	database string
}

// NewMongoExecutor builds a MongoExecutor from a connection URI and
// database name.
func NewMongoExecutor(ctx context.Context, uri, database string) (*MongoExecutor, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return &MongoExecutor{client: client, database: database}, nil
}

func collectionNameForNodeType(nodeType string) string {
	return nodeType
}

func (m *MongoExecutor) nodesCollection(nodeType string) *mongo.Collection {
	return m.client.Database(m.database).Collection(collectionNameForNodeType(nodeType))
}

func (m *MongoExecutor) relsCollection(relType string) *mongo.Collection {
	return m.client.Database(m.database).Collection("rel_" + relType)
}

func (m *MongoExecutor) UpsertNodes(ctx context.Context, op model.OperationOnNodeIdentity, nodes []*model.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(nodes))
	for _, n := range nodes {
		filter := bson.M{"_id": n.Identity.Key()}
		doc := bson.M{"_id": n.Identity.Key(), "type": n.Identity.Type, "properties": n.Properties}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(filter).
			SetReplacement(doc).
			SetUpsert(true))
	}

	_, err := m.nodesCollection(op.NodeType).BulkWrite(ctx, models)
	if err != nil {
		return fmt.Errorf("bulk upsert nodes: %w", err)
	}
	return nil
}

func (m *MongoExecutor) UpsertRelationships(ctx context.Context, op model.OperationOnRelationshipIdentity, rels []*model.Relationship) error {
	if len(rels) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(rels))
	for _, r := range rels {
		id := r.From.Key() + "->" + r.To.Key()
		filter := bson.M{"_id": id}
		doc := bson.M{
			"_id":        id,
			"from":       r.From.Key(),
			"to":         r.To.Key(),
			"properties": r.Properties,
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(filter).
			SetReplacement(doc).
			SetUpsert(true))
	}

	_, err := m.relsCollection(op.RelationshipType).BulkWrite(ctx, models)
	if err != nil {
		return fmt.Errorf("bulk upsert relationships: %w", err)
	}
	return nil
}

func (m *MongoExecutor) UpsertKeyIndex(ctx context.Context, idx model.KeyIndex) error {
	keys := bson.D{}
	for _, f := range idx.Fields {
		keys = append(keys, bson.E{Key: "properties." + f, Value: 1})
	}
	_, err := m.nodesCollection(idx.NodeType).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create key index: %w", err)
	}
	return nil
}

func (m *MongoExecutor) UpsertFieldIndex(ctx context.Context, idx model.FieldIndex) error {
	_, err := m.nodesCollection(idx.NodeType).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "properties." + idx.Field, Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create field index: %w", err)
	}
	return nil
}

func (m *MongoExecutor) PerformTTL(ctx context.Context, cfg model.TimeToLiveConfiguration) error {
	if !cfg.EnabledOverall {
		return nil
	}
	_, err := m.nodesCollection(cfg.NodeType).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "properties." + cfg.ExpiryField, Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("create ttl index: %w", err)
	}
	return nil
}

func (m *MongoExecutor) ExecuteHook(ctx context.Context, hook model.IngestionHook) error {
	if eh, ok := hook.(executableHook); ok {
		return eh.Execute(ctx)
	}
	_, err := m.client.Database(m.database).Collection("hooks").InsertOne(ctx, bson.M{"name": hook.Name()})
	if err != nil {
		return fmt.Errorf("execute hook %s: %w", hook.Name(), err)
	}
	return nil
}

var _ BatchExecutor = (*MongoExecutor)(nil)

// Package dedupe provides a Redis-backed IngestionHook that marks
// external record identifiers as processed, grounded on
// pipeline-core/pkg/dedup's DedupService contract and adapted from
// per-pipeline event dedup to a per-ingest graph hook.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Service is the operations a dedupe-backed IngestionHook needs: check
// and mark an external id as already processed, mirroring DedupService's
// IsDuplicate/MarkProcessed pair.
type Service interface {
	IsDuplicate(ctx context.Context, id string) (bool, error)
	MarkProcessed(ctx context.Context, id string) error
	Close() error
}

// RedisService is a Service backed by redis/go-redis/v9, storing
// processed ids as keys with a TTL instead of the teacher's in-memory
// map-plus-background-sweep, since Redis already expires keys natively.
type RedisService struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisService builds a RedisService against addr, namespacing keys
// under prefix (e.g. "nodestream:dedupe:") with the given ttl.
func NewRedisService(addr, prefix string, ttl time.Duration) *RedisService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisService{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		prefix: prefix,
	}
}

func (s *RedisService) key(id string) string {
	return s.prefix + id
}

func (s *RedisService) IsDuplicate(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe exists check: %w", err)
	}
	return n > 0, nil
}

func (s *RedisService) MarkProcessed(ctx context.Context, id string) error {
	if err := s.client.Set(ctx, s.key(id), time.Now().Unix(), s.ttl).Err(); err != nil {
		return fmt.Errorf("dedupe mark processed: %w", err)
	}
	return nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// Hook is an IngestionHook that marks ID as processed in the backing
// Service when executed, so a writer that supports hooks can skip
// re-ingesting the same external record on replay.
type Hook struct {
	Service Service
	ID      string
}

func (h Hook) Name() string {
	return "dedupe:" + h.ID
}

// Execute runs the dedupe side effect. The Elasticsearch and Mongo
// BatchExecutor implementations type-assert every IngestionHook for this
// method; for a hook without it, Mongo records the hook's name in a
// "hooks" collection and Elasticsearch does nothing.
func (h Hook) Execute(ctx context.Context) error {
	return h.Service.MarkProcessed(ctx, h.ID)
}

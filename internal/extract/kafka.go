package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

// KafkaConfig configures a KafkaExtractor.
type KafkaConfig struct {
	Brokers        []string
	Topics         []string
	GroupID        string
	StartOffset    string // "earliest" or "latest"
	MinBytes       int
	MaxBytes       int
	MaxWait        time.Duration
	CommitInterval time.Duration
}

// KafkaExtractor reads records from one or more Kafka topics using
// segmentio/kafka-go, one reader goroutine per topic fanning into a
// single output channel.
type KafkaExtractor struct {
	cfg     KafkaConfig
	readers []*kafka.Reader
	mu      sync.Mutex

	checkpointMu sync.Mutex
	checkpoints  map[string]int64
}

// NewKafkaExtractor builds a KafkaExtractor from cfg.
func NewKafkaExtractor(cfg KafkaConfig) *KafkaExtractor {
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 * 1024 * 1024
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}
	if cfg.CommitInterval <= 0 {
		cfg.CommitInterval = time.Second
	}
	return &KafkaExtractor{cfg: cfg, checkpoints: make(map[string]int64)}
}

func (k *KafkaExtractor) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	startOffset := kafka.LastOffset
	if k.cfg.StartOffset == "earliest" || k.cfg.StartOffset == "beginning" {
		startOffset = kafka.FirstOffset
	}

	for _, topic := range k.cfg.Topics {
		readerCfg := kafka.ReaderConfig{
			Brokers:        k.cfg.Brokers,
			Topic:          topic,
			MinBytes:       k.cfg.MinBytes,
			MaxBytes:       k.cfg.MaxBytes,
			MaxWait:        k.cfg.MaxWait,
			StartOffset:    startOffset,
			CommitInterval: k.cfg.CommitInterval,
		}
		if k.cfg.GroupID != "" {
			readerCfg.GroupID = k.cfg.GroupID
		}
		k.readers = append(k.readers, kafka.NewReader(readerCfg))
	}
	return nil
}

func (k *KafkaExtractor) Finish(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var first error
	for _, r := range k.readers {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (k *KafkaExtractor) ExtractRecords(ctx context.Context) (<-chan any, error) {
	out := make(chan any, 100)

	k.mu.Lock()
	readers := append([]*kafka.Reader(nil), k.readers...)
	k.mu.Unlock()

	var wg sync.WaitGroup
	for _, reader := range readers {
		wg.Add(1)
		go func(r *kafka.Reader) {
			defer wg.Done()
			k.readFromReader(ctx, r, out)
		}(reader)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

func (k *KafkaExtractor) readFromReader(ctx context.Context, reader *kafka.Reader, out chan<- any) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			return
		}

		k.updateCheckpoint(msg.Topic, msg.Partition, msg.Offset)

		var data any
		var decoded map[string]any
		if jerr := json.Unmarshal(msg.Value, &decoded); jerr == nil {
			data = decoded
		} else {
			data = string(msg.Value)
		}

		select {
		case out <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (k *KafkaExtractor) updateCheckpoint(topic string, partition int, offset int64) {
	k.checkpointMu.Lock()
	defer k.checkpointMu.Unlock()
	k.checkpoints[fmt.Sprintf("%s-%d", topic, partition)] = offset
}

// Checkpoints returns a snapshot of the offset of the last message read
// per topic-partition, for diagnostics; the runtime itself does not use it
// for recovery (no persistent checkpointing is in scope).
func (k *KafkaExtractor) Checkpoints() map[string]int64 {
	k.checkpointMu.Lock()
	defer k.checkpointMu.Unlock()
	out := make(map[string]int64, len(k.checkpoints))
	for key, v := range k.checkpoints {
		out[key] = v
	}
	return out
}

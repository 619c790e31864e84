package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dagrun-io/dagrun/internal/application/orchestrator"
)

const streamKey = "dagrun:stream:workflow.events"

// StreamsSink implements EventSink by publishing orchestrator events to a
// Redis Stream. External consumers (dashboards, auditing) read the stream
// with their own consumer groups; the orchestrator never depends on them.
type StreamsSink struct {
	client *redis.Client
	logger *zap.Logger
	maxLen int64
}

// NewStreamsSink creates a new Redis Streams event sink. maxLen bounds the
// stream with approximate trimming; zero disables trimming.
func NewStreamsSink(client *redis.Client, maxLen int64, logger *zap.Logger) *StreamsSink {
	return &StreamsSink{
		client: client,
		logger: logger,
		maxLen: maxLen,
	}
}

// Publish appends an event to the stream.
func (s *StreamsSink) Publish(ctx context.Context, event orchestrator.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if _, err := s.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	s.logger.Debug("event published",
		zap.String("type", string(event.Type)),
		zap.String("execution_id", event.ExecutionID),
		zap.String("stream", streamKey))

	return nil
}

// Close closes the sink. The Redis client is owned by the caller.
func (s *StreamsSink) Close() error {
	return nil
}

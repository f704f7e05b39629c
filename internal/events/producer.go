package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher publishes brief lifecycle events to Redis Streams
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a new Publisher instance
func NewPublisher(redisURL string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &Publisher{rdb: redis.NewClient(opts)}, nil
}

// PublishBriefCompleted publishes a completion event to the stream
func (p *Publisher) PublishBriefCompleted(ctx context.Context, event BriefCompleted) (string, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}

	result := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamBriefCompleted,
		MaxLen: 10000,
		Approx: true,
		ID:     "*", // auto-generate ID
		Values: map[string]interface{}{
			"payload":        string(payload),
			"published_at":   time.Now().Unix(),
			"schema_version": SchemaVersionV1,
		},
	})

	if result.Err() != nil {
		return "", fmt.Errorf("failed to publish to stream: %w", result.Err())
	}

	return result.Val(), nil
}

// NotifyBriefCompleted adapts the publisher to the pipeline's
// CompletionNotifier contract.
func (p *Publisher) NotifyBriefCompleted(ctx context.Context, jobID string, userID uint, audioURL string) error {
	_, err := p.PublishBriefCompleted(ctx, BriefCompleted{
		JobID:    jobID,
		UserID:   userID,
		AudioURL: audioURL,
	})
	return err
}

// Close closes the Redis client connection
func (p *Publisher) Close() error {
	return p.rdb.Close()
}

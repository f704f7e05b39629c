package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RequestConsumer consumes on-demand brief requests from Redis Streams.
// The web application publishes to brief:requests; this consumer turns
// each entry into a pipeline job.
type RequestConsumer struct {
	rdb          *redis.Client
	groupName    string
	consumerName string
}

// NewRequestConsumer creates a new RequestConsumer instance
func NewRequestConsumer(redisURL, consumerName string) (*RequestConsumer, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	// Read timeout must exceed the XReadGroup Block duration (5s)
	// to avoid spurious i/o timeout errors on idle streams.
	opts.ReadTimeout = 10 * time.Second

	client := redis.NewClient(opts)

	// Create consumer group on brief:requests stream
	// Start ID "0" means read from beginning if group is new
	err = client.XGroupCreateMkStream(context.Background(), StreamBriefRequests, GroupPipelineWorkers, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}
	// Ignore BUSYGROUP error - group already exists

	return &RequestConsumer{
		rdb:          client,
		groupName:    GroupPipelineWorkers,
		consumerName: consumerName,
	}, nil
}

// Consume runs a blocking loop consuming requests from the stream
func (c *RequestConsumer) Consume(ctx context.Context, handler func(BriefRequest) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.groupName,
			Consumer: c.consumerName,
			Streams:  []string{StreamBriefRequests, ">"},
			Count:    10,
			Block:    5000, // 5 seconds
		}).Result()

		if err == redis.Nil {
			// No messages available, continue loop
			continue
		}

		if err != nil {
			// Blocking reads return a timeout when no messages arrive
			// within the Block duration. This is normal, not an error.
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			slog.Error("Failed to read from stream", "error", err)
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				payloadStr, ok := message.Values["payload"].(string)
				if !ok {
					slog.Error("Invalid message payload", "message_id", message.ID)
					continue
				}

				var req BriefRequest
				if err := json.Unmarshal([]byte(payloadStr), &req); err != nil {
					slog.Error("Failed to unmarshal request", "error", err, "message_id", message.ID)
					continue
				}

				if err := handler(req); err != nil {
					slog.Error("Handler failed", "error", err, "user_id", req.UserID)
					// Message stays in PEL for retry, don't ACK
					continue
				}

				if err := c.rdb.XAck(ctx, StreamBriefRequests, c.groupName, message.ID).Err(); err != nil {
					slog.Error("Failed to ACK message", "error", err, "message_id", message.ID)
				}
			}
		}
	}
}

// Close closes the Redis client connection
func (c *RequestConsumer) Close() error {
	return c.rdb.Close()
}

// StartRequestConsumer starts the request consumer in a background
// goroutine and returns a stop function
func StartRequestConsumer(redisURL string, handler func(BriefRequest) error) (stop func(), err error) {
	consumer, err := NewRequestConsumer(redisURL, "pipeline-worker-1")
	if err != nil {
		return nil, fmt.Errorf("failed to create request consumer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := consumer.Consume(ctx, handler); err != nil {
			if err != context.Canceled {
				slog.Error("Request consumer stopped with error", "error", err)
			}
		}
	}()

	slog.Info("Request consumer started")

	return func() {
		cancel()
		consumer.Close()
	}, nil
}

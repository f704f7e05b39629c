package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants, one per pipeline stage.
const (
	TaskDailySchedule  = "brief:schedule"
	TaskOrchestrate    = "brief:orchestrate"
	TaskFetchData      = "brief:fetch"
	TaskGenerateScript = "brief:script"
	TaskGenerateAudio  = "brief:audio"
	TaskUpload         = "brief:upload"
)

// Retry policy. Every stage gets a bounded number of redeliveries;
// exhaustion lands the task in the archived set and marks the job
// failed (see the server error handler). Audio retries wait much
// longer than the rest so transient TTS outages are not hammered.
const (
	maxRetry          = 5
	defaultRetryDelay = 60 * time.Second
	audioRetryDelay   = 5 * time.Minute
)

// stageTimeout bounds a single handler invocation.
func stageTimeout(taskType string) time.Duration {
	if taskType == TaskGenerateAudio {
		return 10 * time.Minute
	}
	return 5 * time.Minute
}

// RetryDelay implements the per-stage redelivery delay. Installed as
// the server's RetryDelayFunc.
func RetryDelay(_ int, _ error, task *asynq.Task) time.Duration {
	if task.Type() == TaskGenerateAudio {
		return audioRetryDelay
	}
	return defaultRetryDelay
}

// Client enqueues pipeline tasks. It satisfies Enqueuer and is handed
// to stage handlers explicitly rather than living in a package global.
type Client struct {
	client *asynq.Client
}

// NewClient creates an enqueue client from a Redis URL.
func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &Client{client: asynq.NewClient(opt)}, nil
}

// Enqueue marshals the payload and submits a task of the given type
// with the pipeline's standard retry, timeout, and retention options.
func (c *Client) Enqueue(ctx context.Context, taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := asynq.NewTask(
		taskType,
		data,
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(stageTimeout(taskType)),
		asynq.Retention(24*time.Hour),
	)

	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}
	return nil
}

// EnqueueJobRequest stamps the request time and submits an orchestrate
// task. Used by the scheduler fan-out, the HTTP trigger, and the
// external request consumer.
func (c *Client) EnqueueJobRequest(ctx context.Context, req JobRequest) error {
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	return c.Enqueue(ctx, TaskOrchestrate, req)
}

// Close closes the underlying queue connection.
func (c *Client) Close() error {
	return c.client.Close()
}

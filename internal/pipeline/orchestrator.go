package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/civicbrief/civicbrief/internal/jobstore"
)

// handleOrchestrate converts a job request into a durable metadata
// record and forwards a minimal routing message to the fetch stage.
// The job id is derived from the request timestamp and the task id, so
// redelivery of the same message reproduces the same id and the
// metadata write stays overwrite-idempotent. The task is acknowledged
// only after both the metadata write and the downstream enqueue
// succeed; any failure retries the whole message.
func handleOrchestrate(logger *slog.Logger, store jobstore.Store, validator *RequestValidator, enqueuer Enqueuer) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		if err := validator.Validate(task.Payload()); err != nil {
			// Permanently malformed - don't retry
			logger.Error("Rejected malformed job request", "error", err.Error())
			return fmt.Errorf("invalid job request: %w", asynq.SkipRetry)
		}

		var req JobRequest
		if err := json.Unmarshal(task.Payload(), &req); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		taskID, _ := asynq.GetTaskID(ctx)
		jobID := NewJobID(req.RequestedAt, taskID)

		meta := &JobMetadata{
			JobID:           jobID,
			UserID:          req.UserID,
			Email:           req.Email,
			Name:            req.Name,
			State:           req.State,
			District:        req.District,
			PolicyInterests: req.PolicyInterests,
			ForceRegenerate: req.ForceRegenerate,
			Status:          StatusPending,
			CreatedAt:       time.Now().UTC(),
		}

		if err := saveMeta(ctx, store, meta); err != nil {
			return err
		}

		// Downstream carries only the job id and routing fields; the
		// full request lives in the metadata record.
		next := fetchPayload{
			JobID:           jobID,
			UserID:          req.UserID,
			PolicyInterests: req.PolicyInterests,
			State:           req.State,
			District:        req.District,
		}
		if err := enqueuer.Enqueue(ctx, TaskFetchData, next); err != nil {
			return fmt.Errorf("failed to forward job %s: %w", jobID, err)
		}

		logger.Info("Job orchestrated",
			"job_id", jobID,
			"user_id", req.UserID,
			"interests", len(req.PolicyInterests),
		)

		return nil
	}
}

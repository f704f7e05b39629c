package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/civicbrief/civicbrief/internal/config"
	"github.com/civicbrief/civicbrief/internal/topics"
)

// StartScheduler creates and starts an Asynq Scheduler that fires the
// daily fan-out task on the configured cron schedule.
// Returns a stop function for graceful shutdown.
func StartScheduler(cfg *config.Config, logger *slog.Logger) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	location, err := time.LoadLocation(cfg.BriefTimezone)
	if err != nil {
		logger.Warn("Invalid timezone, using UTC", "timezone", cfg.BriefTimezone, "error", err)
		location = time.UTC
	}

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: location,
			LogLevel: asynq.InfoLevel,
			Logger:   &asynqLoggerAdapter{logger: logger},
		},
	)

	task := asynq.NewTask(
		TaskDailySchedule,
		nil, // empty payload - handler queries all users
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.Unique(24*time.Hour), // prevent duplicate fan-out if the scheduler fires twice
	)

	entryID, err := scheduler.Register(cfg.BriefSchedule, task)
	if err != nil {
		return nil, fmt.Errorf("failed to register brief schedule: %w", err)
	}

	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info(
		"Scheduler started",
		"schedule", cfg.BriefSchedule,
		"timezone", cfg.BriefTimezone,
		"entry_id", entryID,
	)

	return func() { scheduler.Shutdown() }, nil
}

// handleDailySchedule enumerates eligible users and submits one job
// request per user. A user-level enqueue failure is logged and counted
// but never aborts the rest of the run; only the user query failing
// fails the whole task (retried at the next scheduled invocation).
func handleDailySchedule(logger *slog.Logger, users UserSource, catalog *topics.Catalog, enqueuer Enqueuer) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		eligible, err := users.BriefUsers(ctx)
		if err != nil {
			return fmt.Errorf("failed to enumerate users: %w", err)
		}

		requestedAt := time.Now().UTC()
		var enqueued, failed int

		for _, user := range eligible {
			interests := ParseInterests(user.Interests, catalog.DefaultTopics)

			req := JobRequest{
				UserID:          user.ID,
				Email:           user.Email,
				Name:            user.Name,
				State:           user.State,
				District:        user.District,
				PolicyInterests: interests,
				ForceRegenerate: false,
				RequestedAt:     requestedAt,
			}

			if err := enqueuer.Enqueue(ctx, TaskOrchestrate, req); err != nil {
				failed++
				logger.Error("Failed to enqueue brief job",
					"user_id", user.ID,
					"error", err.Error(),
				)
				continue
			}
			enqueued++
		}

		logger.Info("Daily brief fan-out finished",
			"users", len(eligible),
			"enqueued", enqueued,
			"failed", failed,
		)

		return nil
	}
}

// ParseInterests decodes a stored interests value defensively. Malformed
// JSON, a non-list value, or an empty list all fall back to the default
// topic list so the user is never dropped from the run.
func ParseInterests(raw []byte, defaults []string) []string {
	if len(raw) == 0 {
		return defaults
	}

	var interests []string
	if err := json.Unmarshal(raw, &interests); err != nil {
		return defaults
	}

	cleaned := interests[:0]
	for _, interest := range interests {
		if interest != "" {
			cleaned = append(cleaned, interest)
		}
	}
	if len(cleaned) == 0 {
		return defaults
	}
	return cleaned
}

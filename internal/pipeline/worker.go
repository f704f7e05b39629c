package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/civicbrief/civicbrief/internal/config"
	"github.com/civicbrief/civicbrief/internal/jobstore"
	"github.com/civicbrief/civicbrief/internal/topics"
)

// asynqLoggerAdapter wraps slog.Logger to implement asynq.Logger interface
type asynqLoggerAdapter struct {
	logger *slog.Logger
}

func (a *asynqLoggerAdapter) Debug(args ...interface{}) {
	a.logger.Debug(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Info(args ...interface{}) {
	a.logger.Info(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Warn(args ...interface{}) {
	a.logger.Warn(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Error(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Fatal(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}

// Deps bundles everything the stage handlers need. All collaborators
// are explicit interfaces; nothing reaches for ambient globals.
type Deps struct {
	Store    jobstore.Store
	Users    UserSource
	Bills    BillSource
	Briefs   BriefStore
	News     NewsSearcher
	Synth    SpeechSynthesizer
	Objects  ObjectStore
	Enqueuer Enqueuer
	Catalog  *topics.Catalog
	Voices   VoiceConfig
	// Notifier may be nil; completion events are then skipped.
	Notifier CompletionNotifier
}

// Run starts the Asynq worker server and blocks until shutdown signal.
// Use this for standalone worker mode.
func Run(cfg *config.Config, deps Deps) error {
	srv, mux, err := newServer(cfg, deps)
	if err != nil {
		return err
	}
	return srv.Run(mux)
}

// Start starts the worker in non-blocking mode and returns a stop
// function. Use this for embedded mode so the caller can coordinate
// shutdown.
func Start(cfg *config.Config, deps Deps) (stop func(), err error) {
	srv, mux, err := newServer(cfg, deps)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() { srv.Shutdown() }, nil
}

func newServer(cfg *config.Config, deps Deps) (*asynq.Server, *asynq.ServeMux, error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := NewLogger(cfg.LogLevel, cfg.LogFormat)

	validator, err := NewRequestValidator()
	if err != nil {
		return nil, nil, err
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     5,
			ShutdownTimeout: 30 * time.Second,
			RetryDelayFunc:  RetryDelay,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger, deps.Store)),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskDailySchedule, handleDailySchedule(logger, deps.Users, deps.Catalog, deps.Enqueuer))
	mux.HandleFunc(TaskOrchestrate, handleOrchestrate(logger, deps.Store, validator, deps.Enqueuer))
	mux.HandleFunc(TaskFetchData, handleFetchData(logger, deps.Store, deps.Bills, deps.News, deps.Catalog, deps.Enqueuer))
	mux.HandleFunc(TaskGenerateScript, handleGenerateScript(logger, deps.Store, deps.Enqueuer))
	mux.HandleFunc(TaskGenerateAudio, handleGenerateAudio(logger, deps.Store, deps.Synth, deps.Voices, deps.Enqueuer))
	mux.HandleFunc(TaskUpload, handleUpload(logger, deps.Store, deps.Objects, deps.Briefs, deps.Notifier))

	logger.Info("Worker starting", "concurrency", 5, "redis", cfg.RedisURL)
	return srv, mux, nil
}

// makeErrorHandler creates an error handler function with logger closure.
// On final failure the job's metadata record is marked failed so the
// status surface reflects the dead-lettered task.
func makeErrorHandler(logger *slog.Logger, store jobstore.Store) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetryCount, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetryCount,
		)

		if retried >= maxRetryCount {
			logger.Error(
				"Task moved to dead letter queue (all retries exhausted)",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)

			if jobID := jobIDFromPayload(task.Payload()); jobID != "" && store != nil {
				if err := setStatus(ctx, store, jobID, StatusFailed); err != nil {
					logger.Error("Failed to mark job failed", "job_id", jobID, "error", err.Error())
				}
			}
		}
	}
}

// jobIDFromPayload pulls the job id out of any stage payload that
// carries one. Schedule and orchestrate payloads have none; their
// failures have no job record to mark.
func jobIDFromPayload(payload []byte) string {
	var probe struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.JobID
}

package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/civicbrief/civicbrief/internal/pipeline"
	"github.com/civicbrief/civicbrief/internal/topics"
)

// HandleBriefRequest returns a handler that turns a stream request into
// a pipeline job: load the user, resolve interests, enqueue orchestrate.
func HandleBriefRequest(logger *slog.Logger, users pipeline.UserSource, catalog *topics.Catalog, enqueuer pipeline.Enqueuer) func(BriefRequest) error {
	return func(req BriefRequest) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		user, err := users.UserByID(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("failed to load user %d: %w", req.UserID, err)
		}

		jobReq := pipeline.JobRequest{
			UserID:          user.ID,
			Email:           user.Email,
			Name:            user.Name,
			State:           user.State,
			District:        user.District,
			PolicyInterests: pipeline.ParseInterests(user.Interests, catalog.DefaultTopics),
			ForceRegenerate: req.ForceRegenerate,
			RequestedAt:     time.Now().UTC(),
		}

		if err := enqueuer.Enqueue(ctx, pipeline.TaskOrchestrate, jobReq); err != nil {
			return fmt.Errorf("failed to enqueue job for user %d: %w", req.UserID, err)
		}

		logger.Info("On-demand brief request enqueued",
			"user_id", req.UserID,
			"force_regenerate", req.ForceRegenerate,
		)

		return nil
	}
}

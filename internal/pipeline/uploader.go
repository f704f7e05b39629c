package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/datatypes"

	"github.com/civicbrief/civicbrief/internal/jobstore"
	"github.com/civicbrief/civicbrief/internal/models"
)

// Rough duration estimate for 128 kbps MP3 audio.
const mp3BytesPerSecond = 16000

// handleUpload finalizes a job: pushes the audio to object storage,
// creates the brief record, and cleans up the remaining job-scoped
// blobs. The brief insert is idempotent on job id, so a redelivery
// after a partial failure re-runs the stage without duplicating the
// brief.
func handleUpload(logger *slog.Logger, store jobstore.Store, objects ObjectStore, briefs BriefStore, notifier CompletionNotifier) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload uploadPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		if err := setStatus(ctx, store, payload.JobID, StatusUploading); err != nil {
			return err
		}

		meta, err := loadMeta(ctx, store, payload.JobID)
		if err != nil {
			return err
		}

		encoded, err := store.Get(ctx, jobstore.Key(payload.JobID, jobstore.ArtifactAudio))
		if errors.Is(err, jobstore.ErrNotFound) {
			// The blob is deleted only after the upload and the brief
			// insert succeeded, so its absence here means a prior
			// delivery did everything except the final status write.
			logger.Info("Audio blob already consumed, finishing job", "job_id", payload.JobID)
			return setStatus(ctx, store, payload.JobID, StatusComplete)
		}
		if err != nil {
			return fmt.Errorf("failed to read audio for job %s: %w", payload.JobID, err)
		}

		audio, err := base64.StdEncoding.DecodeString(string(encoded))
		if err != nil {
			return fmt.Errorf("failed to decode audio for job %s: %w", payload.JobID, asynq.SkipRetry)
		}

		objectKey := fmt.Sprintf("briefs/%d/%s.mp3", meta.UserID, payload.JobID)
		audioURL, err := objects.PutAudio(ctx, objectKey, audio)
		if err != nil {
			return fmt.Errorf("failed to upload audio for job %s: %w", payload.JobID, err)
		}

		now := time.Now().UTC()
		brief := &models.Brief{
			UserID:          meta.UserID,
			JobID:           payload.JobID,
			Type:            models.BriefTypeDaily,
			AudioURL:        audioURL,
			Transcript:      meta.Transcript,
			Digest:          meta.Digest,
			BillNumbers:     mustJSON(meta.BillNumbers),
			PolicyAreas:     mustJSON(meta.PolicyAreas),
			DurationSeconds: len(audio) / mp3BytesPerSecond,
			GeneratedAt:     &now,
		}
		if err := briefs.CreateBrief(ctx, brief); err != nil {
			return err
		}
		if err := briefs.TouchLastBrief(ctx, meta.UserID, now); err != nil {
			return err
		}

		// Consumed artifacts; the metadata record stays until its TTL
		// expires so status remains queryable for a while.
		if err := store.Delete(ctx, jobstore.Key(payload.JobID, jobstore.ArtifactAudio)); err != nil {
			return err
		}
		if err := store.Delete(ctx, jobstore.Key(payload.JobID, jobstore.ArtifactAudioDone)); err != nil {
			return err
		}

		if err := setStatus(ctx, store, payload.JobID, StatusComplete); err != nil {
			return err
		}

		if notifier != nil {
			if err := notifier.NotifyBriefCompleted(ctx, payload.JobID, meta.UserID, audioURL); err != nil {
				// Best-effort announcement; the brief itself is done.
				logger.Warn("Failed to publish completion event",
					"job_id", payload.JobID,
					"error", err.Error(),
				)
			}
		}

		logger.Info("Brief completed",
			"job_id", payload.JobID,
			"user_id", meta.UserID,
			"audio_url", audioURL,
			"duration_seconds", brief.DurationSeconds,
		)

		return nil
	}
}

func mustJSON(v interface{}) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(data)
}

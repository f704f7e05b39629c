package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/civicbrief/civicbrief/internal/jobstore"
	"github.com/civicbrief/civicbrief/internal/tts"
)

// VoiceConfig maps the two speaker tags onto configured voice ids.
type VoiceConfig struct {
	HostVoiceID  string
	GuestVoiceID string
}

// handleGenerateAudio reads the persisted script, synthesizes the whole
// dialogue in one TTS call, and stores the audio base64-encoded (the
// shared store is JSON-friendly, not binary-friendly). The script blob
// is deleted once consumed.
//
// The TTS call is guarded by a per-job completion marker written right
// after the audio blob: a redelivery caused by a failure later in the
// stage (or further down the pipeline) skips straight past synthesis
// instead of billing the speech API twice.
func handleGenerateAudio(logger *slog.Logger, store jobstore.Store, synth SpeechSynthesizer, voices VoiceConfig, enqueuer Enqueuer) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload audioPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		if err := setStatus(ctx, store, payload.JobID, StatusSynthesizing); err != nil {
			return err
		}

		markerKey := jobstore.Key(payload.JobID, jobstore.ArtifactAudioDone)
		if _, err := store.Get(ctx, markerKey); err == nil {
			logger.Info("Audio already synthesized, skipping TTS call", "job_id", payload.JobID)
			return finishAudioStage(ctx, store, enqueuer, payload.JobID)
		} else if !errors.Is(err, jobstore.ErrNotFound) {
			return err
		}

		scriptData, err := store.Get(ctx, jobstore.Key(payload.JobID, jobstore.ArtifactScript))
		if err != nil {
			return fmt.Errorf("script blob missing for job %s: %w", payload.JobID, err)
		}

		var script ScriptArtifact
		if err := json.Unmarshal(scriptData, &script); err != nil {
			return fmt.Errorf("failed to decode script: %w", asynq.SkipRetry)
		}

		inputs := make([]tts.DialogueInput, 0, len(script.Lines))
		for _, line := range script.Lines {
			voiceID := voices.GuestVoiceID
			if line.Speaker == SpeakerHost {
				voiceID = voices.HostVoiceID
			}
			inputs = append(inputs, tts.DialogueInput{Text: line.Text, VoiceID: voiceID})
		}

		audio, err := synth.SynthesizeDialogue(ctx, inputs)
		if err != nil {
			return fmt.Errorf("failed to synthesize job %s: %w", payload.JobID, err)
		}

		encoded := base64.StdEncoding.EncodeToString(audio)
		if err := store.Put(ctx, jobstore.Key(payload.JobID, jobstore.ArtifactAudio), []byte(encoded)); err != nil {
			return err
		}
		if err := store.Put(ctx, markerKey, []byte("done")); err != nil {
			return err
		}

		logger.Info("Job audio synthesized",
			"job_id", payload.JobID,
			"lines", len(inputs),
			"audio_bytes", len(audio),
		)

		return finishAudioStage(ctx, store, enqueuer, payload.JobID)
	}
}

// finishAudioStage performs the stage's cleanup and hand-off: delete
// the consumed script and forward to upload. Shared by the normal path
// and the marker-skip path so both are idempotent.
func finishAudioStage(ctx context.Context, store jobstore.Store, enqueuer Enqueuer, jobID string) error {
	if err := store.Delete(ctx, jobstore.Key(jobID, jobstore.ArtifactScript)); err != nil {
		return err
	}
	if err := enqueuer.Enqueue(ctx, TaskUpload, uploadPayload{JobID: jobID}); err != nil {
		return fmt.Errorf("failed to forward job %s: %w", jobID, err)
	}
	return nil
}

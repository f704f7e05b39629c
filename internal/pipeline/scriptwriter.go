package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/civicbrief/civicbrief/internal/jobstore"
	"github.com/civicbrief/civicbrief/internal/newsapi"
)

// Speaker tags used throughout the script and audio stages. The audio
// stage maps them onto the two configured voices.
const (
	SpeakerHost  = "HOST"
	SpeakerGuest = "GUEST"
)

// ScriptLine is one spoken line of the dialogue.
type ScriptLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// ScriptArtifact is the blob handed from the script stage to the audio
// stage.
type ScriptArtifact struct {
	Lines []ScriptLine `json:"lines"`
}

// handleGenerateScript turns the fetched bills and news into a
// two-speaker dialogue script. The consumed bills/news blobs are
// deleted once the script is written; the transcript, digest, and
// coverage fields are folded into the metadata record because the
// uploader needs them after the script itself is gone.
func handleGenerateScript(logger *slog.Logger, store jobstore.Store, enqueuer Enqueuer) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload scriptPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		if err := setStatus(ctx, store, payload.JobID, StatusScripting); err != nil {
			return err
		}

		// A redelivery after the script was written (crash or enqueue
		// failure before the ack) must not re-read the consumed inputs.
		if _, err := store.Get(ctx, jobstore.Key(payload.JobID, jobstore.ArtifactScript)); err == nil {
			logger.Info("Script already written, skipping composition", "job_id", payload.JobID)
			return finishScriptStage(ctx, store, enqueuer, payload.JobID)
		} else if !errors.Is(err, jobstore.ErrNotFound) {
			return err
		}

		meta, err := loadMeta(ctx, store, payload.JobID)
		if err != nil {
			return err
		}

		billsJSON, err := store.Get(ctx, jobstore.Key(payload.JobID, jobstore.ArtifactBills))
		if err != nil {
			return fmt.Errorf("bills blob missing for job %s: %w", payload.JobID, err)
		}
		newsJSON, err := store.Get(ctx, jobstore.Key(payload.JobID, jobstore.ArtifactNews))
		if err != nil {
			return fmt.Errorf("news blob missing for job %s: %w", payload.JobID, err)
		}

		var bills []BillItem
		if err := json.Unmarshal(billsJSON, &bills); err != nil {
			return fmt.Errorf("failed to decode bills: %w", asynq.SkipRetry)
		}
		var articles []newsapi.Article
		if err := json.Unmarshal(newsJSON, &articles); err != nil {
			return fmt.Errorf("failed to decode news: %w", asynq.SkipRetry)
		}

		script := ComposeScript(meta.Name, bills, articles)

		// The metadata fields go in first so the skip path above never
		// sees a script whose transcript was lost to a crash in between.
		meta.Transcript = RenderTranscript(script)
		meta.Digest = RenderDigest(bills, articles)
		meta.BillNumbers = billNumbers(bills)
		meta.PolicyAreas = policyAreas(bills)
		if err := saveMeta(ctx, store, meta); err != nil {
			return err
		}

		scriptData, err := json.Marshal(script)
		if err != nil {
			return fmt.Errorf("failed to encode script: %w", asynq.SkipRetry)
		}
		if err := store.Put(ctx, jobstore.Key(payload.JobID, jobstore.ArtifactScript), scriptData); err != nil {
			return err
		}

		logger.Info("Job script generated",
			"job_id", payload.JobID,
			"lines", len(script.Lines),
		)

		return finishScriptStage(ctx, store, enqueuer, payload.JobID)
	}
}

// finishScriptStage drops the consumed bills/news blobs and forwards to
// the audio stage. Shared by the normal path and the redelivery skip
// path; the deletes are no-ops the second time around.
func finishScriptStage(ctx context.Context, store jobstore.Store, enqueuer Enqueuer, jobID string) error {
	if err := store.Delete(ctx, jobstore.Key(jobID, jobstore.ArtifactBills)); err != nil {
		return err
	}
	if err := store.Delete(ctx, jobstore.Key(jobID, jobstore.ArtifactNews)); err != nil {
		return err
	}
	if err := enqueuer.Enqueue(ctx, TaskGenerateAudio, audioPayload{JobID: jobID}); err != nil {
		return fmt.Errorf("failed to forward job %s: %w", jobID, err)
	}
	return nil
}

// ComposeScript builds the dialogue: an intro, one exchange per bill,
// a news rundown, and an outro. Host and guest lines alternate so the
// two-voice synthesis has natural back-and-forth.
func ComposeScript(listenerName string, bills []BillItem, articles []newsapi.Article) ScriptArtifact {
	var lines []ScriptLine

	greeting := "Good morning"
	if listenerName != "" {
		greeting = fmt.Sprintf("Good morning, %s", firstName(listenerName))
	}
	lines = append(lines, ScriptLine{
		Speaker: SpeakerHost,
		Text: fmt.Sprintf("%s, and welcome to your brief for %s. Here's what's moving in the areas you follow.",
			greeting, time.Now().Format("Monday, January 2")),
	})

	for _, bill := range bills {
		lines = append(lines, ScriptLine{
			Speaker: SpeakerHost,
			Text:    fmt.Sprintf("First up in %s: %s, %s, sponsored by %s.", bill.PolicyArea, bill.BillNumber, bill.Title, bill.Sponsor),
		})
		guest := bill.Summary
		if bill.LastActionText != "" {
			guest = fmt.Sprintf("%s The latest action: %s", guest, bill.LastActionText)
		}
		lines = append(lines, ScriptLine{Speaker: SpeakerGuest, Text: guest})
	}

	if len(articles) > 0 {
		lines = append(lines, ScriptLine{
			Speaker: SpeakerHost,
			Text:    "And a quick look at the headlines.",
		})
		for _, article := range articles {
			lines = append(lines, ScriptLine{Speaker: SpeakerGuest, Text: fmt.Sprintf("%s. %s", article.Title, article.Description)})
		}
	}

	lines = append(lines, ScriptLine{
		Speaker: SpeakerHost,
		Text:    "That's your brief. We'll be back tomorrow with more.",
	})

	return ScriptArtifact{Lines: lines}
}

// RenderTranscript flattens the dialogue into the plain-text transcript
// stored on the final brief.
func RenderTranscript(script ScriptArtifact) string {
	var b strings.Builder
	for _, line := range script.Lines {
		b.WriteString(line.Speaker)
		b.WriteString(": ")
		b.WriteString(line.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderDigest builds the short written summary stored alongside the
// audio.
func RenderDigest(bills []BillItem, articles []newsapi.Article) string {
	var b strings.Builder
	for _, bill := range bills {
		fmt.Fprintf(&b, "- %s (%s): %s\n", bill.BillNumber, bill.PolicyArea, bill.Title)
	}
	for _, article := range articles {
		fmt.Fprintf(&b, "- %s (%s)\n", article.Title, article.URL)
	}
	return b.String()
}

func billNumbers(bills []BillItem) []string {
	numbers := make([]string, 0, len(bills))
	for _, bill := range bills {
		numbers = append(numbers, bill.BillNumber)
	}
	return numbers
}

func policyAreas(bills []BillItem) []string {
	seen := make(map[string]bool, len(bills))
	areas := make([]string, 0, len(bills))
	for _, bill := range bills {
		if !seen[bill.PolicyArea] {
			seen[bill.PolicyArea] = true
			areas = append(areas, bill.PolicyArea)
		}
	}
	return areas
}

func firstName(name string) string {
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}

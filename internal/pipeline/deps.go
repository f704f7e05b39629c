package pipeline

import (
	"context"
	"time"

	"github.com/civicbrief/civicbrief/internal/models"
	"github.com/civicbrief/civicbrief/internal/newsapi"
	"github.com/civicbrief/civicbrief/internal/tts"
)

// Stage handlers receive their collaborators through these interfaces
// so tests can substitute in-memory fakes. internal/database.Repo
// satisfies the data interfaces; the newsapi, tts, and objstore
// clients satisfy the rest.

// UserSource reads user records.
type UserSource interface {
	BriefUsers(ctx context.Context) ([]models.User, error)
	UserByID(ctx context.Context, id uint) (*models.User, error)
}

// BillSource reads bills relevant to a set of policy interests.
type BillSource interface {
	TopBillsForInterests(ctx context.Context, interests []string, window time.Duration, limit int) ([]models.Bill, error)
}

// BriefStore persists final brief records.
type BriefStore interface {
	CreateBrief(ctx context.Context, brief *models.Brief) error
	TouchLastBrief(ctx context.Context, userID uint, at time.Time) error
}

// NewsSearcher queries the external news search API.
type NewsSearcher interface {
	Search(ctx context.Context, query, freshness string, count int) ([]newsapi.Article, error)
}

// SpeechSynthesizer turns a dialogue line set into one audio stream.
type SpeechSynthesizer interface {
	SynthesizeDialogue(ctx context.Context, inputs []tts.DialogueInput) ([]byte, error)
}

// ObjectStore uploads final audio artifacts and returns their URL.
type ObjectStore interface {
	PutAudio(ctx context.Context, key string, data []byte) (string, error)
}

// Enqueuer submits a task to the named stage queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload interface{}) error
}

// CompletionNotifier announces finished briefs to interested consumers
// outside the pipeline. Best-effort; publish failures never fail a job.
type CompletionNotifier interface {
	NotifyBriefCompleted(ctx context.Context, jobID string, userID uint, audioURL string) error
}

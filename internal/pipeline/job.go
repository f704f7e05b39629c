package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Job status constants. Each stage marks the job's metadata record on
// entry; the upload stage marks completion. Failed is set by the error
// handler once a stage exhausts its retries.
const (
	StatusPending      = "pending"
	StatusFetching     = "fetching"
	StatusScripting    = "scripting"
	StatusSynthesizing = "synthesizing"
	StatusUploading    = "uploading"
	StatusComplete     = "complete"
	StatusFailed       = "failed"
)

// JobRequest is the full payload submitted to the orchestrator, one
// per user per run. RequestedAt is stamped at enqueue time and anchors
// the job id, so queue redelivery of the same request reproduces the
// same id.
type JobRequest struct {
	UserID          uint      `json:"userId"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	State           string    `json:"state,omitempty"`
	District        string    `json:"district,omitempty"`
	PolicyInterests []string  `json:"policyInterests,omitempty"`
	ForceRegenerate bool      `json:"forceRegenerate"`
	RequestedAt     time.Time `json:"requestedAt"`
}

// JobMetadata is the durable job record kept under job:<id>:meta for
// the lifetime of the pipeline run. The script stage adds the
// transcript, digest, and coverage fields the uploader needs after the
// intermediate blobs are gone.
type JobMetadata struct {
	JobID           string    `json:"jobId"`
	UserID          uint      `json:"userId"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	State           string    `json:"state,omitempty"`
	District        string    `json:"district,omitempty"`
	PolicyInterests []string  `json:"policyInterests"`
	ForceRegenerate bool      `json:"forceRegenerate"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`

	Transcript  string   `json:"transcript,omitempty"`
	Digest      string   `json:"digest,omitempty"`
	BillNumbers []string `json:"billNumbers,omitempty"`
	PolicyAreas []string `json:"policyAreas,omitempty"`
}

// Stage hand-off payloads. Only the orchestrator sees the full request;
// downstream messages carry the job id plus minimal routing fields.
type fetchPayload struct {
	JobID           string   `json:"jobId"`
	UserID          uint     `json:"userId"`
	PolicyInterests []string `json:"policyInterests"`
	State           string   `json:"state,omitempty"`
	District        string   `json:"district,omitempty"`
}

type scriptPayload struct {
	JobID  string `json:"jobId"`
	UserID uint   `json:"userId"`
}

type audioPayload struct {
	JobID string `json:"jobId"`
}

type uploadPayload struct {
	JobID string `json:"jobId"`
}

// NewJobID builds a job id of the form brief-<millis>-<8 alphanumeric>.
// The timestamp comes from the request so redelivery reuses the same
// id; the suffix is derived from the task id when the queue provides
// one, and random otherwise. Uniqueness is sufficient for this
// workload, not cryptographically guaranteed.
func NewJobID(requestedAt time.Time, taskID string) string {
	if requestedAt.IsZero() {
		requestedAt = time.Now()
	}

	suffix := strings.ReplaceAll(taskID, "-", "")
	if len(suffix) < 8 {
		suffix = strings.ReplaceAll(uuid.New().String(), "-", "")
	}

	return fmt.Sprintf("brief-%d-%s", requestedAt.UnixMilli(), suffix[:8])
}

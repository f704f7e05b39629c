// Package jobstore provides the shared key-value store pipeline stages
// use to hand intermediate artifacts to one another. Keys are
// namespaced by job id and artifact name; each key has exactly one
// writing stage and one consuming stage.
package jobstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get when a key does not exist. Stage
// handlers use it to distinguish a missing upstream artifact from an
// infrastructure failure.
var ErrNotFound = errors.New("jobstore: key not found")

// DefaultTTL bounds how long job-scoped entries survive. A stage that
// crashes between consuming and deleting its input leaves the blob
// behind; the TTL reclaims it without a sweeper.
const DefaultTTL = 48 * time.Hour

// Store is the stage-to-stage hand-off contract. Implementations must
// be safe for concurrent use across jobs.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// DeleteByPattern removes all keys matching a glob-style pattern
	// and returns how many were removed. Used by administrative cleanup.
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// Artifact names for job-scoped keys.
const (
	ArtifactMeta      = "meta"
	ArtifactBills     = "bills"
	ArtifactNews      = "news"
	ArtifactScript    = "script"
	ArtifactAudio     = "audio"
	ArtifactAudioDone = "audio_done"
)

// Key builds the job-scoped key for an artifact, e.g. "job:brief-...:bills".
func Key(jobID, artifact string) string {
	return fmt.Sprintf("job:%s:%s", jobID, artifact)
}

// JobPattern matches every key belonging to a job.
func JobPattern(jobID string) string {
	return fmt.Sprintf("job:%s:*", jobID)
}

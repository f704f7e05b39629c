package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/civicbrief/civicbrief/internal/jobstore"
)

// loadMeta reads and decodes the job's metadata record.
func loadMeta(ctx context.Context, store jobstore.Store, jobID string) (*JobMetadata, error) {
	data, err := store.Get(ctx, jobstore.Key(jobID, jobstore.ArtifactMeta))
	if err != nil {
		return nil, fmt.Errorf("failed to load job metadata: %w", err)
	}

	var meta JobMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode job metadata: %w", err)
	}
	return &meta, nil
}

// saveMeta encodes and writes the job's metadata record. Overwrites
// are the idempotency mechanism for redelivered messages.
func saveMeta(ctx context.Context, store jobstore.Store, meta *JobMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode job metadata: %w", err)
	}
	if err := store.Put(ctx, jobstore.Key(meta.JobID, jobstore.ArtifactMeta), data); err != nil {
		return fmt.Errorf("failed to save job metadata: %w", err)
	}
	return nil
}

// setStatus transitions the job's status field. Each stage calls this
// on entry; the uploader also calls it on completion.
func setStatus(ctx context.Context, store jobstore.Store, jobID, status string) error {
	meta, err := loadMeta(ctx, store, jobID)
	if err != nil {
		return err
	}
	meta.Status = status
	return saveMeta(ctx, store, meta)
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/civicbrief/civicbrief/internal/jobstore"
	"github.com/civicbrief/civicbrief/internal/topics"
)

// Fetch-stage limits. Both are deliberate token-budget controls for
// the script stage, not completeness guarantees.
const (
	billWindow    = 30 * 24 * time.Hour
	maxBills      = 2
	maxNews       = 5
	newsFreshness = "pw"
)

// BillItem is the trimmed bill representation handed to the script
// stage.
type BillItem struct {
	BillNumber     string  `json:"billNumber"`
	Title          string  `json:"title"`
	Summary        string  `json:"summary"`
	PolicyArea     string  `json:"policyArea"`
	Sponsor        string  `json:"sponsor"`
	Status         string  `json:"status"`
	ImpactScore    float64 `json:"impactScore"`
	LastActionText string  `json:"lastActionText"`
}

// handleFetchData populates the job with the bills and news the later
// stages will narrate. The stage is all-or-nothing: a failure in either
// query fails the whole message, and redelivery rebuilds both blobs.
func handleFetchData(logger *slog.Logger, store jobstore.Store, bills BillSource, news NewsSearcher, catalog *topics.Catalog, enqueuer Enqueuer) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload fetchPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		if err := setStatus(ctx, store, payload.JobID, StatusFetching); err != nil {
			return err
		}

		matched, err := bills.TopBillsForInterests(ctx, payload.PolicyInterests, billWindow, maxBills)
		if err != nil {
			return fmt.Errorf("failed to fetch bills for job %s: %w", payload.JobID, err)
		}

		items := make([]BillItem, 0, len(matched))
		for _, bill := range matched {
			items = append(items, BillItem{
				BillNumber:     bill.BillNumber,
				Title:          bill.Title,
				Summary:        bill.Summary,
				PolicyArea:     bill.PolicyArea,
				Sponsor:        bill.Sponsor,
				Status:         bill.Status,
				ImpactScore:    bill.ImpactScore,
				LastActionText: bill.LastActionText,
			})
		}

		query := strings.Join(catalog.SearchTerms(payload.PolicyInterests), " ")
		articles, err := news.Search(ctx, query, newsFreshness, maxNews)
		if err != nil {
			return fmt.Errorf("failed to fetch news for job %s: %w", payload.JobID, err)
		}

		billsJSON, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("failed to encode bills: %w", asynq.SkipRetry)
		}
		newsJSON, err := json.Marshal(articles)
		if err != nil {
			return fmt.Errorf("failed to encode news: %w", asynq.SkipRetry)
		}

		if err := store.Put(ctx, jobstore.Key(payload.JobID, jobstore.ArtifactBills), billsJSON); err != nil {
			return err
		}
		if err := store.Put(ctx, jobstore.Key(payload.JobID, jobstore.ArtifactNews), newsJSON); err != nil {
			return err
		}

		next := scriptPayload{JobID: payload.JobID, UserID: payload.UserID}
		if err := enqueuer.Enqueue(ctx, TaskGenerateScript, next); err != nil {
			return fmt.Errorf("failed to forward job %s: %w", payload.JobID, err)
		}

		logger.Info("Job data fetched",
			"job_id", payload.JobID,
			"bills", len(items),
			"articles", len(articles),
		)

		return nil
	}
}

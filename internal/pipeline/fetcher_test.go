package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/civicbrief/civicbrief/internal/jobstore"
	"github.com/civicbrief/civicbrief/internal/models"
	"github.com/civicbrief/civicbrief/internal/newsapi"
)

func bill(number string, area string, impact float64) models.Bill {
	now := time.Now().Add(-24 * time.Hour)
	return models.Bill{
		Model:        gorm.Model{ID: 1},
		BillNumber:   number,
		Title:        "Title of " + number,
		Summary:      "Summary of " + number,
		PolicyArea:   area,
		Sponsor:      "Rep. Example",
		Status:       "committee",
		ImpactScore:  impact,
		LastActionAt: &now,
	}
}

func fetchTask(t *testing.T, payload fetchPayload) *asynq.Task {
	t.Helper()
	return asynq.NewTask(TaskFetchData, mustMarshal(t, payload))
}

func seedFetchJob(t *testing.T, store jobstore.Store) fetchPayload {
	t.Helper()
	seedMeta(t, store, &JobMetadata{
		JobID:           "brief-1700000000000-ab12cd34",
		UserID:          1,
		Email:           "u1@example.com",
		PolicyInterests: []string{"healthcare"},
		Status:          StatusPending,
		CreatedAt:       time.Now().UTC(),
	})
	return fetchPayload{
		JobID:           "brief-1700000000000-ab12cd34",
		UserID:          1,
		PolicyInterests: []string{"healthcare"},
	}
}

func TestHandleFetchData(t *testing.T) {
	store := jobstore.NewMemoryStore()
	payload := seedFetchJob(t, store)

	// Source holds 5 matching bills, already ranked by impact; the
	// stage must keep only the top 2.
	bills := &fakeBillSource{bills: []models.Bill{
		bill("HR-1", "healthcare", 9.5),
		bill("HR-2", "healthcare", 8.1),
		bill("HR-3", "healthcare", 7.7),
		bill("HR-4", "healthcare", 5.0),
		bill("HR-5", "healthcare", 2.2),
	}}
	news := &fakeNews{articles: []newsapi.Article{
		{Title: "A", URL: "https://example.com/a", Description: "a"},
		{Title: "B", URL: "https://example.com/b", Description: "b"},
	}}
	enqueuer := &fakeEnqueuer{}

	handler := handleFetchData(testLogger(), store, bills, news, testCatalog(t), enqueuer)
	require.NoError(t, handler(context.Background(), fetchTask(t, payload)))

	assert.Equal(t, []string{"healthcare"}, bills.gotFilters)
	assert.Equal(t, 30*24*time.Hour, bills.gotWindow)
	assert.Equal(t, 2, bills.gotLimit)

	var storedBills []BillItem
	data, err := store.Get(context.Background(), jobstore.Key(payload.JobID, jobstore.ArtifactBills))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &storedBills))
	require.Len(t, storedBills, 2)
	assert.Equal(t, "HR-1", storedBills[0].BillNumber)
	assert.Equal(t, "HR-2", storedBills[1].BillNumber)
	assert.Equal(t, 9.5, storedBills[0].ImpactScore)

	assert.Equal(t, "pw", news.gotFreshness)
	assert.Equal(t, 5, news.gotCount)
	// The catalog expands the interest into its search keywords.
	assert.Contains(t, news.gotQuery, "healthcare")
	assert.Contains(t, news.gotQuery, "health policy")

	var storedNews []newsapi.Article
	data, err = store.Get(context.Background(), jobstore.Key(payload.JobID, jobstore.ArtifactNews))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &storedNews))
	assert.Len(t, storedNews, 2)

	meta := metaFromStore(t, store, payload.JobID)
	assert.Equal(t, StatusFetching, meta.Status)

	forwarded := enqueuer.byType(TaskGenerateScript)
	require.Len(t, forwarded, 1)
	var next scriptPayload
	require.NoError(t, json.Unmarshal(forwarded[0].payload, &next))
	assert.Equal(t, payload.JobID, next.JobID)
	assert.Equal(t, uint(1), next.UserID)
}

func TestHandleFetchDataNewsCappedAtFive(t *testing.T) {
	store := jobstore.NewMemoryStore()
	payload := seedFetchJob(t, store)

	many := make([]newsapi.Article, 9)
	for i := range many {
		many[i] = newsapi.Article{Title: "Article", URL: "https://example.com", Description: "d"}
	}
	news := &fakeNews{articles: many}
	enqueuer := &fakeEnqueuer{}

	handler := handleFetchData(testLogger(), store, &fakeBillSource{}, news, testCatalog(t), enqueuer)
	require.NoError(t, handler(context.Background(), fetchTask(t, payload)))

	var storedNews []newsapi.Article
	data, err := store.Get(context.Background(), jobstore.Key(payload.JobID, jobstore.ArtifactNews))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &storedNews))
	assert.Len(t, storedNews, 5)
}

func TestHandleFetchDataAllOrNothing(t *testing.T) {
	t.Run("bills query fails", func(t *testing.T) {
		store := jobstore.NewMemoryStore()
		payload := seedFetchJob(t, store)
		bills := &fakeBillSource{err: errors.New("connection reset")}
		enqueuer := &fakeEnqueuer{}

		handler := handleFetchData(testLogger(), store, bills, &fakeNews{}, testCatalog(t), enqueuer)
		err := handler(context.Background(), fetchTask(t, payload))
		require.Error(t, err)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
		assert.Empty(t, enqueuer.tasks)
	})

	t.Run("news query fails", func(t *testing.T) {
		store := jobstore.NewMemoryStore()
		payload := seedFetchJob(t, store)
		news := &fakeNews{err: errors.New("HTTP 503")}
		enqueuer := &fakeEnqueuer{}

		handler := handleFetchData(testLogger(), store, &fakeBillSource{}, news, testCatalog(t), enqueuer)
		err := handler(context.Background(), fetchTask(t, payload))
		require.Error(t, err)
		assert.NotErrorIs(t, err, asynq.SkipRetry)

		// No partial-success path: nothing is forwarded even though the
		// bills query had succeeded.
		assert.Empty(t, enqueuer.tasks)
	})
}

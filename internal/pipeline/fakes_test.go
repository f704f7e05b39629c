package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/civicbrief/civicbrief/internal/jobstore"
	"github.com/civicbrief/civicbrief/internal/models"
	"github.com/civicbrief/civicbrief/internal/newsapi"
	"github.com/civicbrief/civicbrief/internal/topics"
	"github.com/civicbrief/civicbrief/internal/tts"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func testCatalog(t *testing.T) *topics.Catalog {
	t.Helper()
	catalog, err := topics.Load()
	require.NoError(t, err)
	return catalog
}

// fakeEnqueuer records every enqueued task and can be told to fail for
// specific users or task types.
type fakeEnqueuer struct {
	mu       sync.Mutex
	tasks    []enqueuedTask
	failFor  map[uint]bool
	failType string
}

type enqueuedTask struct {
	taskType string
	payload  []byte
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if f.failType != "" && f.failType == taskType {
		return errors.New("enqueue failed")
	}
	if f.failFor != nil {
		var probe struct {
			UserID uint `json:"userId"`
		}
		_ = json.Unmarshal(data, &probe)
		if f.failFor[probe.UserID] {
			return errors.New("enqueue failed")
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, enqueuedTask{taskType: taskType, payload: data})
	return nil
}

func (f *fakeEnqueuer) byType(taskType string) []enqueuedTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []enqueuedTask
	for _, task := range f.tasks {
		if task.taskType == taskType {
			out = append(out, task)
		}
	}
	return out
}

type fakeUserSource struct {
	users []models.User
	err   error
}

func (f *fakeUserSource) BriefUsers(context.Context) ([]models.User, error) {
	return f.users, f.err
}

func (f *fakeUserSource) UserByID(_ context.Context, id uint) (*models.User, error) {
	for i := range f.users {
		if f.users[i].ID == id {
			return &f.users[i], nil
		}
	}
	return nil, errors.New("user not found")
}

type fakeBillSource struct {
	bills      []models.Bill
	err        error
	gotLimit   int
	gotWindow  time.Duration
	gotFilters []string
}

func (f *fakeBillSource) TopBillsForInterests(_ context.Context, interests []string, window time.Duration, limit int) ([]models.Bill, error) {
	f.gotFilters = interests
	f.gotWindow = window
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if len(f.bills) > limit {
		return f.bills[:limit], nil
	}
	return f.bills, nil
}

type fakeNews struct {
	articles     []newsapi.Article
	err          error
	gotQuery     string
	gotFreshness string
	gotCount     int
}

func (f *fakeNews) Search(_ context.Context, query, freshness string, count int) ([]newsapi.Article, error) {
	f.gotQuery = query
	f.gotFreshness = freshness
	f.gotCount = count
	if f.err != nil {
		return nil, f.err
	}
	if len(f.articles) > count {
		return f.articles[:count], nil
	}
	return f.articles, nil
}

type fakeSynth struct {
	audio     []byte
	err       error
	calls     int
	gotInputs []tts.DialogueInput
}

func (f *fakeSynth) SynthesizeDialogue(_ context.Context, inputs []tts.DialogueInput) ([]byte, error) {
	f.calls++
	f.gotInputs = inputs
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

type fakeObjects struct {
	err     error
	gotKey  string
	gotData []byte
}

func (f *fakeObjects) PutAudio(_ context.Context, key string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.gotKey = key
	f.gotData = data
	return "https://cdn.example.com/" + key, nil
}

// fakeBriefStore mimics the unique-job-id insert semantics of the real
// repo: a second create for the same job id is a silent no-op.
type fakeBriefStore struct {
	briefs      map[string]*models.Brief
	touched     map[uint]time.Time
	createCalls int
	err         error
}

func newFakeBriefStore() *fakeBriefStore {
	return &fakeBriefStore{
		briefs:  make(map[string]*models.Brief),
		touched: make(map[uint]time.Time),
	}
}

func (f *fakeBriefStore) CreateBrief(_ context.Context, brief *models.Brief) error {
	f.createCalls++
	if f.err != nil {
		return f.err
	}
	if _, exists := f.briefs[brief.JobID]; exists {
		return nil
	}
	f.briefs[brief.JobID] = brief
	return nil
}

func (f *fakeBriefStore) TouchLastBrief(_ context.Context, userID uint, at time.Time) error {
	f.touched[userID] = at
	return nil
}

type fakeNotifier struct {
	calls []string
	err   error
}

func (f *fakeNotifier) NotifyBriefCompleted(_ context.Context, jobID string, _ uint, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, jobID)
	return nil
}

// seedMeta writes a metadata record directly into the store, standing
// in for a prior orchestrate invocation.
func seedMeta(t *testing.T, store jobstore.Store, meta *JobMetadata) {
	t.Helper()
	data, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), jobstore.Key(meta.JobID, jobstore.ArtifactMeta), data))
}

func metaFromStore(t *testing.T, store jobstore.Store, jobID string) *JobMetadata {
	t.Helper()
	data, err := store.Get(context.Background(), jobstore.Key(jobID, jobstore.ArtifactMeta))
	require.NoError(t, err)
	var meta JobMetadata
	require.NoError(t, json.Unmarshal(data, &meta))
	return &meta
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

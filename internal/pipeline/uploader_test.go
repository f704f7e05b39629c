package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicbrief/civicbrief/internal/jobstore"
)

func seedUploadJob(t *testing.T, store jobstore.Store, audio []byte) uploadPayload {
	t.Helper()

	jobID := "brief-1700000000000-ab12cd34"
	seedMeta(t, store, &JobMetadata{
		JobID:       jobID,
		UserID:      42,
		Status:      StatusSynthesizing,
		CreatedAt:   time.Now().UTC(),
		Transcript:  "HOST: Good morning.\n",
		Digest:      "Today: HR-1.",
		BillNumbers: []string{"HR-1"},
		PolicyAreas: []string{"healthcare"},
	})
	require.NoError(t, store.Put(context.Background(), jobstore.Key(jobID, jobstore.ArtifactAudio),
		[]byte(base64.StdEncoding.EncodeToString(audio))))
	require.NoError(t, store.Put(context.Background(), jobstore.Key(jobID, jobstore.ArtifactAudioDone), []byte("done")))

	return uploadPayload{JobID: jobID}
}

func TestHandleUpload(t *testing.T) {
	store := jobstore.NewMemoryStore()
	audio := make([]byte, mp3BytesPerSecond*90)
	payload := seedUploadJob(t, store, audio)
	objects := &fakeObjects{}
	briefs := newFakeBriefStore()
	notifier := &fakeNotifier{}

	handler := handleUpload(testLogger(), store, objects, briefs, notifier)
	require.NoError(t, handler(context.Background(), asynq.NewTask(TaskUpload, mustMarshal(t, payload))))

	assert.Equal(t, "briefs/42/"+payload.JobID+".mp3", objects.gotKey)
	assert.Equal(t, audio, objects.gotData)

	brief, ok := briefs.briefs[payload.JobID]
	require.True(t, ok)
	assert.Equal(t, uint(42), brief.UserID)
	assert.Equal(t, "https://cdn.example.com/"+objects.gotKey, brief.AudioURL)
	assert.Equal(t, "HOST: Good morning.\n", brief.Transcript)
	assert.Equal(t, "Today: HR-1.", brief.Digest)
	assert.Equal(t, 90, brief.DurationSeconds)
	assert.Contains(t, briefs.touched, uint(42))

	// Consumed blobs are gone, metadata stays and is marked complete.
	_, err := store.Get(context.Background(), jobstore.Key(payload.JobID, jobstore.ArtifactAudio))
	assert.ErrorIs(t, err, jobstore.ErrNotFound)
	_, err = store.Get(context.Background(), jobstore.Key(payload.JobID, jobstore.ArtifactAudioDone))
	assert.ErrorIs(t, err, jobstore.ErrNotFound)
	assert.Equal(t, StatusComplete, metaFromStore(t, store, payload.JobID).Status)

	assert.Equal(t, []string{payload.JobID}, notifier.calls)
}

func TestHandleUploadRedeliveryKeepsSingleBrief(t *testing.T) {
	store := jobstore.NewMemoryStore()
	audio := []byte("mp3-bytes")
	payload := seedUploadJob(t, store, audio)
	objects := &fakeObjects{}
	briefs := newFakeBriefStore()

	handler := handleUpload(testLogger(), store, objects, briefs, nil)
	require.NoError(t, handler(context.Background(), asynq.NewTask(TaskUpload, mustMarshal(t, payload))))

	// Redelivery after a lost ack: the blobs come back with the retry
	// window still open, the brief insert must not duplicate.
	require.NoError(t, store.Put(context.Background(), jobstore.Key(payload.JobID, jobstore.ArtifactAudio),
		[]byte(base64.StdEncoding.EncodeToString(audio))))
	require.NoError(t, store.Put(context.Background(), jobstore.Key(payload.JobID, jobstore.ArtifactAudioDone), []byte("done")))
	require.NoError(t, handler(context.Background(), asynq.NewTask(TaskUpload, mustMarshal(t, payload))))

	assert.Equal(t, 2, briefs.createCalls)
	assert.Len(t, briefs.briefs, 1)
}

func TestHandleUploadRedeliveryAfterCleanupConverges(t *testing.T) {
	store := jobstore.NewMemoryStore()
	payload := seedUploadJob(t, store, []byte("mp3-bytes"))
	objects := &fakeObjects{}
	briefs := newFakeBriefStore()

	handler := handleUpload(testLogger(), store, objects, briefs, nil)
	require.NoError(t, handler(context.Background(), asynq.NewTask(TaskUpload, mustMarshal(t, payload))))

	// Redelivery after the blobs were already deleted (the first
	// delivery lost only its ack): the stage must converge to complete
	// instead of erroring on the missing audio forever.
	require.NoError(t, handler(context.Background(), asynq.NewTask(TaskUpload, mustMarshal(t, payload))))

	assert.Equal(t, 1, briefs.createCalls)
	assert.Len(t, briefs.briefs, 1)
	assert.Equal(t, StatusComplete, metaFromStore(t, store, payload.JobID).Status)
}

func TestHandleUploadStorageFailure(t *testing.T) {
	store := jobstore.NewMemoryStore()
	payload := seedUploadJob(t, store, []byte("mp3-bytes"))
	objects := &fakeObjects{err: errors.New("bucket unavailable")}
	briefs := newFakeBriefStore()

	handler := handleUpload(testLogger(), store, objects, briefs, nil)
	err := handler(context.Background(), asynq.NewTask(TaskUpload, mustMarshal(t, payload)))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	// Nothing recorded, blobs retained for the retry.
	assert.Empty(t, briefs.briefs)
	_, getErr := store.Get(context.Background(), jobstore.Key(payload.JobID, jobstore.ArtifactAudio))
	assert.NoError(t, getErr)
}

func TestHandleUploadNotifierFailureIsNotFatal(t *testing.T) {
	store := jobstore.NewMemoryStore()
	payload := seedUploadJob(t, store, []byte("mp3-bytes"))
	objects := &fakeObjects{}
	briefs := newFakeBriefStore()
	notifier := &fakeNotifier{err: errors.New("stream unavailable")}

	handler := handleUpload(testLogger(), store, objects, briefs, notifier)
	require.NoError(t, handler(context.Background(), asynq.NewTask(TaskUpload, mustMarshal(t, payload))))
	assert.Equal(t, StatusComplete, metaFromStore(t, store, payload.JobID).Status)
}

func TestHandleUploadCorruptAudioSkipsRetry(t *testing.T) {
	store := jobstore.NewMemoryStore()
	jobID := "brief-1700000000000-ab12cd34"
	seedMeta(t, store, &JobMetadata{JobID: jobID, UserID: 1, Status: StatusSynthesizing})
	require.NoError(t, store.Put(context.Background(), jobstore.Key(jobID, jobstore.ArtifactAudio), []byte("%%%not-base64%%%")))

	handler := handleUpload(testLogger(), store, &fakeObjects{}, newFakeBriefStore(), nil)
	err := handler(context.Background(), asynq.NewTask(TaskUpload, mustMarshal(t, uploadPayload{JobID: jobID})))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

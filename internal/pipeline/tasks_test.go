package pipeline

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		taskType string
		want     time.Duration
	}{
		{TaskOrchestrate, 60 * time.Second},
		{TaskFetchData, 60 * time.Second},
		{TaskGenerateScript, 60 * time.Second},
		{TaskGenerateAudio, 5 * time.Minute},
		{TaskUpload, 60 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.taskType, func(t *testing.T) {
			task := asynq.NewTask(tt.taskType, nil)
			assert.Equal(t, tt.want, RetryDelay(1, nil, task))
		})
	}
}

func TestStageTimeout(t *testing.T) {
	assert.Equal(t, 10*time.Minute, stageTimeout(TaskGenerateAudio))
	assert.Equal(t, 5*time.Minute, stageTimeout(TaskFetchData))
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "0 6 * * *", cfg.BriefSchedule)
	assert.Equal(t, "America/New_York", cfg.BriefTimezone)
	assert.False(t, cfg.EmbedWorker)
	assert.Equal(t, "eleven_v3", cfg.TTS.ModelID)
	assert.Equal(t, "civicbrief-audio", cfg.Storage.Bucket)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://app:secret@db:5432/civicbrief")
	t.Setenv("EMBED_WORKER", "true")
	t.Setenv("BRIEF_SCHEDULE", "30 7 * * 1-5")
	t.Setenv("NEWS_API_KEY", "news-key")
	t.Setenv("NEWS_STUB_MODE", "true")
	t.Setenv("TTS_HOST_VOICE_ID", "voice-host")
	t.Setenv("TTS_GUEST_VOICE_ID", "voice-guest")
	t.Setenv("STORAGE_ENDPOINT", "minio:9000")
	t.Setenv("STORAGE_USE_SSL", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://app:secret@db:5432/civicbrief", cfg.DatabaseURL)
	assert.True(t, cfg.EmbedWorker)
	assert.Equal(t, "30 7 * * 1-5", cfg.BriefSchedule)
	assert.Equal(t, "news-key", cfg.News.APIKey)
	assert.True(t, cfg.News.StubMode)
	assert.Equal(t, "voice-host", cfg.TTS.HostVoiceID)
	assert.Equal(t, "voice-guest", cfg.TTS.GuestVoiceID)
	assert.Equal(t, "minio:9000", cfg.Storage.Endpoint)
	assert.True(t, cfg.Storage.UseSSL)
}

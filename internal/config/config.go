package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Env  string `env:"ENV" envDefault:"development"`
	Port string `env:"PORT" envDefault:"8080"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Daily brief generation schedule (cron syntax) and timezone.
	BriefSchedule string `env:"BRIEF_SCHEDULE" envDefault:"0 6 * * *"`
	BriefTimezone string `env:"BRIEF_TIMEZONE" envDefault:"America/New_York"`

	// EmbedWorker runs the pipeline worker inside the API server process.
	// Useful for development; production runs cmd/worker separately.
	EmbedWorker bool `env:"EMBED_WORKER" envDefault:"false"`

	// AdminToken guards the administrative cleanup endpoints.
	AdminToken string `env:"ADMIN_TOKEN"`

	News    NewsConfig    `envPrefix:"NEWS_"`
	TTS     TTSConfig     `envPrefix:"TTS_"`
	Storage StorageConfig `envPrefix:"STORAGE_"`
}

// NewsConfig configures the external news search API.
type NewsConfig struct {
	BaseURL string `env:"API_URL" envDefault:"https://api.search.brave.com/res/v1/web/search"`
	APIKey  string `env:"API_KEY"`
	// StubMode returns canned results instead of calling the API.
	StubMode bool `env:"STUB_MODE" envDefault:"false"`
}

// TTSConfig configures the text-to-speech API and the two-voice scheme
// used for dialogue scripts.
type TTSConfig struct {
	BaseURL      string `env:"API_URL" envDefault:"https://api.elevenlabs.io/v1/text-to-dialogue"`
	APIKey       string `env:"API_KEY"`
	ModelID      string `env:"MODEL_ID" envDefault:"eleven_v3"`
	HostVoiceID  string `env:"HOST_VOICE_ID"`
	GuestVoiceID string `env:"GUEST_VOICE_ID"`
	StubMode     bool   `env:"STUB_MODE" envDefault:"false"`
}

// StorageConfig configures the S3-compatible object store that holds
// final audio artifacts.
type StorageConfig struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	Bucket    string `env:"BUCKET" envDefault:"civicbrief-audio"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
	// PublicBaseURL is prepended to object keys to build the audio URL
	// stored on the brief record.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:9000/civicbrief-audio"`
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present (development convenience;
// real environment variables win).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return cfg, nil
}

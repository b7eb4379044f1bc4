package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	AnswerModel         string `envconfig:"ANSWER_MODEL" default:"gpt-4o-mini"`

	// Retrieval and conflict tuning
	ConflictThreshold float32 `envconfig:"CONFLICT_THRESHOLD" default:"0.86"`
	DefaultTopK       int     `envconfig:"DEFAULT_TOP_K" default:"5"`

	// AdminToken grants the delete and bulk-import capability. Empty means
	// privileged operations are refused outright.
	AdminToken string `envconfig:"ADMIN_TOKEN"`

	ResolutionTTL     time.Duration `envconfig:"RESOLUTION_TTL" default:"24h"`
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"30s"`

	SentryDSN         string  `envconfig:"SENTRY_DSN"`
	SentryEnvironment string  `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
	SentrySampleRate  float64 `envconfig:"SENTRY_SAMPLE_RATE" default:"1.0"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("KLUG", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasAdminToken() bool {
	return c.AdminToken != ""
}

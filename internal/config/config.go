package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration for the evaluation harness.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Query service under test
	ServiceURL          string `env:"SERVICE_URL" envDefault:"http://localhost:8080"`
	QueryTimeoutSeconds int    `env:"QUERY_TIMEOUT_SECONDS" envDefault:"90"`

	// Evaluation run
	Provider    string   `env:"EVAL_PROVIDER" envDefault:"openai"`
	Model       string   `env:"EVAL_MODEL" envDefault:"gpt-4o-mini"`
	Scenario    string   `env:"EVAL_SCENARIO" envDefault:"with_rag"`
	QueryIDs    []string `env:"EVAL_QUERY_IDS" envSeparator:","` // empty = all fixture ids
	OutDir      string   `env:"EVAL_OUT_DIR" envDefault:"eval_output"`
	Cutoff      float64  `env:"EVAL_CUTOFF" envDefault:"0.3"`
	FixturePath string   `env:"FIXTURE_PATH" envDefault:"testdata/question_answer_pair.json"`

	// Embeddings
	OpenAIKey      string `env:"OPENAI_API_KEY"`
	EmbeddingModel string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`

	// Embedding cache
	CacheProvider string `env:"CACHE_PROVIDER" envDefault:"none"` // "none" or "redis"
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	CacheTTL      int    `env:"CACHE_TTL" envDefault:"86400"` // seconds

	// Run history
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"none"` // "none" or "postgres"
	DBURL         string `env:"DB_URL"`

	// Run summary notification
	NotifyProvider string `env:"NOTIFY_PROVIDER" envDefault:"none"` // "none" or "nats"
	NatsURL        string `env:"NATS_URL"`

	// Stub service
	Port int `env:"PORT" envDefault:"8080"`
}

// QueryTimeout returns the per-call timeout as a duration.
func (c Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}

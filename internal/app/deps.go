package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"

	"response-eval/internal/cache"
	"response-eval/internal/config"
	"response-eval/internal/embeddings"
	"response-eval/internal/fixture"
	"response-eval/internal/logger"
	"response-eval/internal/notify"
	"response-eval/internal/queryapi"
	"response-eval/internal/store"
)

// Deps bundles the runtime dependencies for the harness.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Fixture  fixture.Fixture
	Client   queryapi.Client
	Embedder embeddings.Embedder
	Cache    cache.Cache
	Store    store.Store
	Notifier notify.Notifier
}

// Close releases connections held by optional providers.
func (d Deps) Close() {
	if err := d.Cache.Close(); err != nil {
		d.Log.Warn("failed to close cache", "err", err)
	}
	if err := d.Store.Close(); err != nil {
		d.Log.Warn("failed to close store", "err", err)
	}
	if err := d.Notifier.Close(); err != nil {
		d.Log.Warn("failed to close notifier", "err", err)
	}
}

// Build loads env, config, fixture, and all providers. Fixture or embedder
// failures are fatal here: the harness cannot score without them.
func Build() (Deps, error) {
	// A .env file is optional; real environments set variables directly.
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	fx, err := fixture.Load(cfg.FixturePath)
	if err != nil {
		return Deps{}, err
	}
	log.Info("fixture loaded", "path", cfg.FixturePath, "questions", len(fx))

	c, err := buildCache(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}
	embedder, err := buildEmbedder(cfg, c, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	st, err := buildStore(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	notifier, err := buildNotifier(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize notifier: %w", err)
	}

	return Deps{
		Config:   cfg,
		Log:      log,
		Fixture:  fx,
		Client:   queryapi.NewHTTPClient(cfg.ServiceURL, cfg.QueryTimeout()),
		Embedder: embedder,
		Cache:    c,
		Store:    st,
		Notifier: notifier,
	}, nil
}

// StubDeps is the trimmed dependency set for the stub query service, which
// needs neither an embedder nor any optional backend.
type StubDeps struct {
	Config  config.Config
	Log     *slog.Logger
	Fixture fixture.Fixture
}

// BuildStub loads env, config, and the fixture for the stub service.
func BuildStub() (StubDeps, error) {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	fx, err := fixture.Load(cfg.FixturePath)
	if err != nil {
		return StubDeps{}, err
	}
	return StubDeps{Config: cfg, Log: log, Fixture: fx}, nil
}

func buildCache(cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when CACHE_PROVIDER=redis")
		}
		c, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		log.Info("using Redis embedding cache", "addr", cfg.RedisAddr)
		return c, nil
	case "none":
		return cache.NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: none, redis)", cfg.CacheProvider)
	}
}

func buildEmbedder(cfg config.Config, c cache.Cache, log *slog.Logger) (embeddings.Embedder, error) {
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	embedder, err := embeddings.NewOpenAIEmbedder(cfg.OpenAIKey, openai.EmbeddingModel(cfg.EmbeddingModel))
	if err != nil {
		return nil, err
	}
	log.Info("using OpenAI embedder", "model", cfg.EmbeddingModel)
	ttl := time.Duration(cfg.CacheTTL) * time.Second
	return embeddings.NewCachedEmbedder(embedder, c, cfg.EmbeddingModel, ttl, log), nil
}

func buildStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
		}
		db, err := store.NewPostgres(cfg.DBURL)
		if err != nil {
			return nil, err
		}
		log.Info("using Postgres run history")
		return db, nil
	case "none":
		return store.NewNoOpStore(), nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid options: none, postgres)", cfg.StoreProvider)
	}
}

func buildNotifier(cfg config.Config, log *slog.Logger) (notify.Notifier, error) {
	switch cfg.NotifyProvider {
	case "nats":
		if cfg.NatsURL == "" {
			return nil, fmt.Errorf("NATS_URL is required when NOTIFY_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS run notifications")
		return notify.NewNATS(log, nc), nil
	case "none":
		return notify.NewNoOpNotifier(), nil
	default:
		return nil, fmt.Errorf("invalid NOTIFY_PROVIDER: %s (valid options: none, nats)", cfg.NotifyProvider)
	}
}

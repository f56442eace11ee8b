package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"foodvision/internal/config"
	"foodvision/internal/db"
	"foodvision/internal/dish"
	"foodvision/internal/llm"
	"foodvision/internal/scoring"
	"foodvision/internal/storage"
	"foodvision/internal/vision"

	"github.com/redis/go-redis/v9"
)

// App holds the wired services shared by the API server and the CLI.
type App struct {
	Config  *config.Config
	Dishes  *dish.Service
	Scoring *scoring.Service

	closers []func()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// SetupLogger installs the process wide slog handler.
func SetupLogger(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// Build constructs every store and service named by cfg. Call Close when done.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	repo, err := a.profileRepository(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	images, err := imageStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	extractor := vision.NewFeatureExtractor(embedder, cfg.ColorBins)
	extractor.SetMaxPixels(cfg.MaxImagePixels)

	judge := NewJudge(cfg)

	a.Dishes = dish.NewService(repo, images, extractor)
	composer := scoring.NewComposer(extractor, judge, images, cfg.Scoring())
	a.Scoring = scoring.NewService(a.Dishes, composer, cfg.BatchLimits())

	return a, nil
}

// --------------------------------------------------
// Profile store
// --------------------------------------------------
func (a *App) profileRepository(ctx context.Context) (dish.Repository, error) {
	cfg := a.Config

	var repo dish.Repository
	switch cfg.ProfileStore {
	case "postgres":
		pool, err := db.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		repo = dish.NewPostgresRepository(pool)
	default:
		fileRepo, err := dish.NewFileRepository(cfg.ModelDir)
		if err != nil {
			return nil, err
		}
		repo = fileRepo
	}

	if cfg.RedisURL == "" {
		return repo, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	a.closers = append(a.closers, func() { rdb.Close() })

	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unreachable, profile cache will fall through", "error", err)
	} else {
		slog.Info("profile cache enabled", "ttl", cfg.ProfileCacheTTL)
	}

	return dish.NewCachedRepository(repo, rdb, cfg.ProfileCacheTTL), nil
}

// --------------------------------------------------
// Reference image store
// --------------------------------------------------
func imageStore(ctx context.Context, cfg *config.Config) (storage.ImageStore, error) {
	if cfg.ImageStore == "r2" {
		return storage.NewR2Store(ctx, storage.R2Config{
			Endpoint:  cfg.R2Endpoint,
			AccessKey: cfg.R2AccessKey,
			SecretKey: cfg.R2SecretKey,
			Bucket:    cfg.R2Bucket,
		})
	}
	return storage.NewLocalStore(cfg.ReferenceImageDir)
}

// --------------------------------------------------
// Embedding backend
// --------------------------------------------------
func newEmbedder(ctx context.Context, cfg *config.Config) (vision.Embedder, error) {
	if cfg.EmbeddingBackend != "remote" {
		slog.Info("using local haar embedder", "dimension", vision.NewHaarEmbedder().Dimension())
		return vision.NewHaarEmbedder(), nil
	}

	remote := vision.NewRemoteEmbedder(cfg.EmbeddingURL, cfg.EmbeddingTimeout)
	if err := remote.Init(ctx); err != nil {
		return nil, fmt.Errorf("embedding service: %w", err)
	}
	slog.Info("using remote embedder", "url", cfg.EmbeddingURL)
	return remote, nil
}

// --------------------------------------------------
// Judgment service
// --------------------------------------------------

// NewJudge returns a live judge when the chosen provider has credentials,
// otherwise a judge that always reports itself unavailable.
func NewJudge(cfg *config.Config) llm.Judge {
	jc := llm.JudgeConfig{
		Timeout:    cfg.JudgeTimeout,
		MaxRetries: cfg.JudgeMaxRetries,
		RetryDelay: cfg.JudgeRetryDelay,
	}

	switch cfg.JudgeProvider {
	case "gemini":
		if cfg.GeminiKey == "" {
			slog.Warn("GEMINI_API_KEY not set, scoring will use visual signals only")
			return llm.DisabledJudge{Reason: "No GEMINI_API_KEY set"}
		}
		return llm.NewVisionJudge(llm.NewGeminiProvider(cfg.GeminiKey, cfg.GeminiModel, ""), jc)
	default:
		if cfg.OpenAIKey == "" {
			slog.Warn("OPENAI_API_KEY not set, scoring will use visual signals only")
			return llm.DisabledJudge{Reason: "No OPENAI_API_KEY set"}
		}
		return llm.NewVisionJudge(llm.NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), jc)
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"foodvision/internal/scoring"
	"foodvision/internal/vision"
)

// Config holds all runtime settings, read from the environment.
type Config struct {
	// Server
	APIKey         string
	Port           string
	AllowedOrigins []string

	// Profile store
	ProfileStore    string
	ModelDir        string
	DatabaseURL     string
	RedisURL        string
	ProfileCacheTTL time.Duration

	// Reference image store
	ImageStore        string
	ReferenceImageDir string
	R2Endpoint        string
	R2AccessKey       string
	R2SecretKey       string
	R2Bucket          string

	// Embedding backend
	EmbeddingBackend string
	EmbeddingURL     string
	EmbeddingTimeout time.Duration

	// Judgment service
	JudgeProvider   string
	OpenAIKey       string
	OpenAIModel     string
	OpenAIBaseURL   string
	GeminiKey       string
	GeminiModel     string
	JudgeTimeout    time.Duration
	JudgeMaxRetries int
	JudgeRetryDelay time.Duration

	// Scoring
	VisualWeight         float64
	ColorWeight          float64
	JudgeWeight          float64
	FallbackVisualWeight float64
	FallbackColorWeight  float64
	SimilarityEmbedding  float64
	SimilarityColor      float64
	ColorBins            int

	// Limits
	MaxImageSizeMB   int
	MaxImagePixels   int
	MaxBatchSize     int
	BatchConcurrency int

	// Logging
	LogLevel  string
	LogFormat string

	// values that were set but could not be parsed
	parseErrs []error
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var perr []error

	cfg := &Config{
		APIKey:         os.Getenv("API_KEY"),
		Port:           getEnv("PORT", "8000"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),

		ProfileStore:    strings.ToLower(getEnv("PROFILE_STORE", "file")),
		ModelDir:        getEnv("MODEL_DIR", "models"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		ProfileCacheTTL: getEnvDuration("PROFILE_CACHE_TTL", 10*time.Minute, &perr),

		ImageStore:        strings.ToLower(getEnv("IMAGE_STORE", "local")),
		ReferenceImageDir: getEnv("REFERENCE_IMAGE_DIR", "storage/references"),
		R2Endpoint:        os.Getenv("R2_ENDPOINT"),
		R2AccessKey:       os.Getenv("R2_ACCESS_KEY"),
		R2SecretKey:       os.Getenv("R2_SECRET_KEY"),
		R2Bucket:          os.Getenv("R2_BUCKET_NAME"),

		EmbeddingBackend: strings.ToLower(getEnv("EMBEDDING_BACKEND", "haar")),
		EmbeddingURL:     os.Getenv("EMBEDDING_URL"),
		EmbeddingTimeout: getEnvDuration("EMBEDDING_TIMEOUT", 30*time.Second, &perr),

		JudgeProvider:   strings.ToLower(getEnv("JUDGE_PROVIDER", "openai")),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		GeminiKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		JudgeTimeout:    getEnvDuration("JUDGE_TIMEOUT", 60*time.Second, &perr),
		JudgeMaxRetries: getEnvInt("JUDGE_MAX_RETRIES", 1, &perr),
		JudgeRetryDelay: getEnvDuration("JUDGE_RETRY_DELAY", 2*time.Second, &perr),

		VisualWeight:         getEnvFloat("VISUAL_SIMILARITY_WEIGHT", 0.5, &perr),
		ColorWeight:          getEnvFloat("COLOR_SIMILARITY_WEIGHT", 0.25, &perr),
		JudgeWeight:          getEnvFloat("CLAUDE_SCORE_WEIGHT", 0.25, &perr),
		FallbackVisualWeight: getEnvFloat("FALLBACK_VISUAL_WEIGHT", 0.65, &perr),
		FallbackColorWeight:  getEnvFloat("FALLBACK_COLOR_WEIGHT", 0.35, &perr),
		SimilarityEmbedding:  getEnvFloat("SIMILARITY_EMBEDDING_WEIGHT", 0.65, &perr),
		SimilarityColor:      getEnvFloat("SIMILARITY_COLOR_WEIGHT", 0.35, &perr),
		ColorBins:            getEnvInt("COLOR_HISTOGRAM_BINS", vision.DefaultColorBins, &perr),

		MaxImageSizeMB:   getEnvInt("MAX_IMAGE_SIZE_MB", 10, &perr),
		MaxImagePixels:   getEnvInt("MAX_IMAGE_PIXELS", vision.DefaultMaxPixels, &perr),
		MaxBatchSize:     getEnvInt("MAX_BATCH_SIZE", 20, &perr),
		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 4, &perr),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	cfg.parseErrs = perr

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	errs := append([]error(nil), c.parseErrs...)

	switch c.ProfileStore {
	case "file":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when PROFILE_STORE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("PROFILE_STORE must be file or postgres, got %q", c.ProfileStore))
	}

	switch c.ImageStore {
	case "local":
	case "r2":
		if c.R2Endpoint == "" || c.R2Bucket == "" {
			errs = append(errs, errors.New("R2_ENDPOINT and R2_BUCKET_NAME are required when IMAGE_STORE=r2"))
		}
	default:
		errs = append(errs, fmt.Errorf("IMAGE_STORE must be local or r2, got %q", c.ImageStore))
	}

	switch c.EmbeddingBackend {
	case "haar":
	case "remote":
		if c.EmbeddingURL == "" {
			errs = append(errs, errors.New("EMBEDDING_URL is required when EMBEDDING_BACKEND=remote"))
		}
	default:
		errs = append(errs, fmt.Errorf("EMBEDDING_BACKEND must be haar or remote, got %q", c.EmbeddingBackend))
	}

	if c.JudgeProvider != "openai" && c.JudgeProvider != "gemini" {
		errs = append(errs, fmt.Errorf("JUDGE_PROVIDER must be openai or gemini, got %q", c.JudgeProvider))
	}
	if c.JudgeMaxRetries < 0 || c.JudgeMaxRetries > 10 {
		errs = append(errs, fmt.Errorf("JUDGE_MAX_RETRIES must be 0-10, got %d", c.JudgeMaxRetries))
	}

	if err := c.Scoring().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.ColorBins < 1 || c.ColorBins > 256 {
		errs = append(errs, fmt.Errorf("COLOR_HISTOGRAM_BINS must be 1-256, got %d", c.ColorBins))
	}
	if c.MaxImageSizeMB < 1 {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_SIZE_MB must be positive, got %d", c.MaxImageSizeMB))
	}
	if c.MaxImagePixels < 1 {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_PIXELS must be positive, got %d", c.MaxImagePixels))
	}
	if c.MaxBatchSize < 1 || c.BatchConcurrency < 1 {
		errs = append(errs, errors.New("MAX_BATCH_SIZE and BATCH_CONCURRENCY must be positive"))
	}

	return errors.Join(errs...)
}

// ValidateServer adds the checks only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if c.APIKey == "" {
		return errors.New("API_KEY is required")
	}
	return nil
}

func (c *Config) Scoring() scoring.Config {
	return scoring.Config{
		Weights: scoring.Weights{
			Visual: c.VisualWeight,
			Color:  c.ColorWeight,
			Judge:  c.JudgeWeight,
		},
		Fallback: scoring.FallbackWeights{
			Visual: c.FallbackVisualWeight,
			Color:  c.FallbackColorWeight,
		},
		Similarity: vision.SimilarityWeights{
			Embedding: c.SimilarityEmbedding,
			Color:     c.SimilarityColor,
		},
	}
}

func (c *Config) MaxImageBytes() int64 {
	return int64(c.MaxImageSizeMB) * 1024 * 1024
}

func (c *Config) BatchLimits() scoring.BatchLimits {
	return scoring.BatchLimits{MaxSize: c.MaxBatchSize, Concurrency: c.BatchConcurrency}
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func getEnvInt(key string, defaultVal int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64, errs *[]error) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a number", key, v))
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return defaultVal
	}
	return d
}

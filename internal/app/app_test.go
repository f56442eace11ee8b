package app

import (
	"context"
	"path/filepath"
	"testing"

	"foodvision/internal/config"
	"foodvision/internal/llm"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		ProfileStore:         "file",
		ModelDir:             filepath.Join(dir, "models"),
		ImageStore:           "local",
		ReferenceImageDir:    filepath.Join(dir, "refs"),
		EmbeddingBackend:     "haar",
		JudgeProvider:        "openai",
		VisualWeight:         0.5,
		ColorWeight:          0.25,
		JudgeWeight:          0.25,
		FallbackVisualWeight: 0.65,
		FallbackColorWeight:  0.35,
		SimilarityEmbedding:  0.65,
		SimilarityColor:      0.35,
		ColorBins:            32,
		MaxImageSizeMB:       10,
		MaxBatchSize:         20,
		BatchConcurrency:     4,
	}
}

func TestBuild_FileAndLocalStores(t *testing.T) {
	cfg := testConfig(t)

	a, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()

	if a.Dishes == nil || a.Scoring == nil {
		t.Fatal("services not wired")
	}

	ctx := context.Background()
	if _, err := a.Dishes.Create(ctx, "dal", "Dal", nil); err != nil {
		t.Fatalf("create through wired service: %v", err)
	}
	list, err := a.Dishes.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one dish, got %d (%v)", len(list), err)
	}
}

func TestBuild_RemoteEmbedderUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.EmbeddingBackend = "remote"
	cfg.EmbeddingURL = "http://127.0.0.1:1"

	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatal("expected startup failure when embedding service is down")
	}
}

func TestNewJudge_DisabledWithoutKey(t *testing.T) {
	cfg := testConfig(t)

	for _, provider := range []string{"openai", "gemini"} {
		cfg.JudgeProvider = provider
		if _, ok := NewJudge(cfg).(llm.DisabledJudge); !ok {
			t.Errorf("%s: expected disabled judge without key", provider)
		}
	}

	cfg.JudgeProvider = "openai"
	cfg.OpenAIKey = "sk-test"
	if _, ok := NewJudge(cfg).(*llm.VisionJudge); !ok {
		t.Error("expected live judge with key")
	}
}

package dish

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"foodvision/internal/db"
	"foodvision/internal/vision"

	"github.com/redis/go-redis/v9"
)

func sampleProfile(id string) *Profile {
	return &Profile{
		DishID:      id,
		DishName:    "Integration " + id,
		Ingredients: []string{"rice"},
		References: []ReferenceEntry{{
			Features:   vision.FeatureVector{Embedding: []float64{1, 0}, ColorHistogram: []float64{0, 1}},
			SourcePath: id + "/a.png",
		}},
		UpdatedAt: time.Now().UTC(),
	}
}

func TestPostgresRepository_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	repo := NewPostgresRepository(pool)
	id := "it_pg_dish"
	defer repo.Delete(ctx, id)

	if err := repo.Save(ctx, sampleProfile(id)); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.References) != 1 || got.References[0].SourcePath != id+"/a.png" {
		t.Fatalf("unexpected profile %+v", got)
	}

	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCachedRepository_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping integration test")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	ctx := context.Background()
	inner := NewInMemoryRepository()
	repo := NewCachedRepository(inner, rdb, time.Minute)
	id := "it_cache_dish"
	defer rdb.Del(ctx, cacheKey(id))

	if err := repo.Save(ctx, sampleProfile(id)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := repo.Get(ctx, id); err != nil {
		t.Fatalf("get: %v", err)
	}
	if n, _ := rdb.Exists(ctx, cacheKey(id)).Result(); n != 1 {
		t.Fatal("expected profile to be cached after read")
	}

	updated := sampleProfile(id)
	updated.DishName = "Renamed"
	if err := repo.Save(ctx, updated); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ := repo.Get(ctx, id)
	if got.DishName != "Renamed" {
		t.Fatalf("stale cache entry served: %q", got.DishName)
	}

	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

package dish

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "foodvision:dish:"

// deletedMarker occupies the key of a deleted dish for one TTL so that a
// read which started before the delete cannot fill the cache again.
var deletedMarker = []byte("deleted")

// CachedRepository is a read-through Redis cache in front of another
// repository. Cache failures are logged and fall through to the backing
// store.
//
// Saves write the new record into the cache; read fills use SETNX and so
// never replace a newer entry or a delete marker.
type CachedRepository struct {
	inner Repository
	rdb   *redis.Client
	ttl   time.Duration
}

func NewCachedRepository(inner Repository, rdb *redis.Client, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedRepository{inner: inner, rdb: rdb, ttl: ttl}
}

func cacheKey(dishID string) string {
	return cacheKeyPrefix + dishID
}

func (c *CachedRepository) Get(ctx context.Context, dishID string) (*Profile, error) {
	data, err := c.rdb.Get(ctx, cacheKey(dishID)).Bytes()
	switch {
	case err == nil && string(data) == string(deletedMarker):
		return c.inner.Get(ctx, dishID)
	case err == nil:
		p, decErr := decodeProfile(data)
		if decErr == nil {
			return p, nil
		}
		slog.Warn("dropping bad cached profile", "dish_id", dishID, "error", decErr)
		c.invalidate(ctx, dishID)
	case !errors.Is(err, redis.Nil):
		slog.Warn("profile cache read failed", "dish_id", dishID, "error", err)
	}

	p, err := c.inner.Get(ctx, dishID)
	if err != nil {
		return nil, err
	}

	if enc, err := encodeProfile(p); err == nil {
		if err := c.rdb.SetNX(ctx, cacheKey(dishID), enc, c.ttl).Err(); err != nil {
			slog.Warn("profile cache write failed", "dish_id", dishID, "error", err)
		}
	}

	return p, nil
}

// GetFresh reads the backing store, ignoring the cache.
func (c *CachedRepository) GetFresh(ctx context.Context, dishID string) (*Profile, error) {
	return c.inner.Get(ctx, dishID)
}

func (c *CachedRepository) Save(ctx context.Context, p *Profile) error {
	if err := c.inner.Save(ctx, p); err != nil {
		return err
	}

	enc, err := encodeProfile(p)
	if err != nil {
		c.invalidate(ctx, p.DishID)
		return nil
	}
	if err := c.rdb.Set(ctx, cacheKey(p.DishID), enc, c.ttl).Err(); err != nil {
		slog.Warn("profile cache write failed", "dish_id", p.DishID, "error", err)
		c.invalidate(ctx, p.DishID)
	}
	return nil
}

func (c *CachedRepository) Delete(ctx context.Context, dishID string) error {
	err := c.inner.Delete(ctx, dishID)
	if setErr := c.rdb.Set(ctx, cacheKey(dishID), deletedMarker, c.ttl).Err(); setErr != nil {
		slog.Warn("profile cache write failed", "dish_id", dishID, "error", setErr)
		c.invalidate(ctx, dishID)
	}
	return err
}

func (c *CachedRepository) List(ctx context.Context) ([]*Profile, error) {
	return c.inner.List(ctx)
}

func (c *CachedRepository) invalidate(ctx context.Context, dishID string) {
	if err := c.rdb.Del(ctx, cacheKey(dishID)).Err(); err != nil {
		slog.Warn("profile cache invalidation failed", "dish_id", dishID, "error", err)
	}
}

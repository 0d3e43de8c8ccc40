package plans

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/covenant-hq/church-backend/internal/models"
)

const keyPrefix = "plans:"

// Source is the authoritative plan lookup the cache reads through to.
type Source interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	GetActiveByName(ctx context.Context, name string) (*models.Plan, error)
	ListActive(ctx context.Context) ([]*models.Plan, error)
}

// CachedRegistry serves plan lookups from Redis, falling back to the source. Redis errors degrade to
// source reads; they never fail a lookup.
type CachedRegistry struct {
	source  Source
	client  *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
	lookups *prometheus.CounterVec
}

// NewCachedRegistry creates a read-through plan cache.
func NewCachedRegistry(source Source, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedRegistry{source: source, client: client, ttl: ttl, logger: logger}
}

// WithLookupCounter counts lookups by result label: hit, miss or error.
func (c *CachedRegistry) WithLookupCounter(counter *prometheus.CounterVec) *CachedRegistry {
	c.lookups = counter
	return c
}

func (c *CachedRegistry) observe(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}

// GetByID returns a plan by ID.
func (c *CachedRegistry) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	return c.read(ctx, keyPrefix+"id:"+id.String(), func() (*models.Plan, error) {
		return c.source.GetByID(ctx, id)
	})
}

// GetActiveByName returns the active plan with the given name.
func (c *CachedRegistry) GetActiveByName(ctx context.Context, name string) (*models.Plan, error) {
	return c.read(ctx, keyPrefix+"name:"+name, func() (*models.Plan, error) {
		return c.source.GetActiveByName(ctx, name)
	})
}

// ListActive is not cached; it backs the plan picker only.
func (c *CachedRegistry) ListActive(ctx context.Context) ([]*models.Plan, error) {
	return c.source.ListActive(ctx)
}

// Invalidate drops every cached plan.
func (c *CachedRegistry) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *CachedRegistry) read(ctx context.Context, key string, load func() (*models.Plan, error)) (*models.Plan, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p models.Plan
		if jerr := json.Unmarshal(raw, &p); jerr == nil {
			c.observe("hit")
			return &p, nil
		}
		c.logger.Warn("discarding undecodable cached plan", zap.String("key", key))
		c.observe("miss")
	case errors.Is(err, redis.Nil):
		c.observe("miss")
	default:
		c.logger.Warn("plan cache read failed", zap.String("key", key), zap.Error(err))
		c.observe("error")
	}

	p, err := load()
	if err != nil {
		return nil, err
	}
	if body, jerr := json.Marshal(p); jerr == nil {
		if serr := c.client.Set(ctx, key, body, c.ttl).Err(); serr != nil {
			c.logger.Warn("plan cache write failed", zap.String("key", key), zap.Error(serr))
		}
	}
	return p, nil
}

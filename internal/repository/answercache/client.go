// Package answercache caches remote query answers by prompt in a key-value store.
package answercache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/zonemap/internal/db"
	"github.com/kailas-cloud/zonemap/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "answer:"

// store is the consumer interface for the answer cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedClient serves repeated prompts from the store.
// Only successful answers are cached; failures always reach the inner client next time.
type CachedClient struct {
	inner      domain.QueryClient
	store      store
	scope      string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// scope separates answers of different providers or models sharing one store.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.QueryClient,
	s store,
	scope string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedClient {
	return &CachedClient{
		inner:      inner,
		store:      s,
		scope:      scope,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Invoke returns a cached answer or calls the inner client.
func (c *CachedClient) Invoke(ctx context.Context, prompt string) (string, error) {
	key := c.cacheKey(prompt)

	if text, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return text, nil
	}

	c.incCache("miss")

	text, err := c.inner.Invoke(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("invoke: %w", err)
	}

	c.putToCache(ctx, key, text)
	return text, nil
}

func (c *CachedClient) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedClient) cacheKey(prompt string) string {
	h := sha256.Sum256([]byte(c.scope + "\x00" + prompt))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedClient) getFromCache(ctx context.Context, key string) (string, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached answer", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	if len(data) == 0 || !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

func (c *CachedClient) putToCache(ctx context.Context, key, text string) {
	if err := c.store.SetWithTTL(ctx, key, []byte(text), c.ttl); err != nil {
		c.logger.Warn("Failed to cache answer", zap.String("key", key), zap.Error(err))
	}
}

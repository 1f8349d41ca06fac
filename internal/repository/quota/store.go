// Package quota persists query quota counters in a key-value store.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/zonemap/internal/db"
)

type counterStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrWithTTL(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}

// Store implements query.QuotaStore. Daily and monthly counters expire on
// their own so stale periods never need cleanup.
type Store struct {
	kv       counterStore
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a quota store. dailyTTL should outlive one day (48h is used in
// production), monthTTL one month (62 days).
func New(kv counterStore, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{kv: kv, dailyTTL: dailyTTL, monthTTL: monthTTL}
}

// IncrBy adds val to the period counter named by key.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	if _, err := s.kv.IncrWithTTL(ctx, key, val, s.ttlFor(key)); err != nil {
		return fmt.Errorf("quota incr %s: %w", key, err)
	}
	return nil
}

// Get returns the counter value, 0 for a period with no calls yet.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("quota get %s: %w", key, err)
	}
	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("quota get %s: parse %q: %w", key, data, err)
	}
	return val, nil
}

// Keys look like zonemap:quota:{provider}:daily:{date} or :monthly:{month}.
func (s *Store) ttlFor(key string) time.Duration {
	if strings.Contains(key, ":daily:") {
		return s.dailyTTL
	}
	return s.monthTTL
}

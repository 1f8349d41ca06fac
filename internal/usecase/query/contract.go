package query

import "context"

// Client issues one remote text-generation request.
type Client interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// QuotaStore is the persistence interface for quota counters.
// Implementations must be idempotent (IncrBy can be called repeatedly).
type QuotaStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

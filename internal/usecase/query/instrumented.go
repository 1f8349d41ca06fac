package query

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Quota is the local interface for quota enforcement.
type Quota interface {
	Check(ctx context.Context) error
	Record(n int64)
}

// InstrumentedClient wraps a Client with quota enforcement and logging.
// Transport metrics (requests, duration, tokens) are recorded by the transport adapters.
type InstrumentedClient struct {
	inner    Client
	provider string
	quota    Quota
	logger   *zap.Logger
}

// NewInstrumentedClient wraps a client. quota may be nil.
func NewInstrumentedClient(inner Client, provider string, quota Quota, logger *zap.Logger) *InstrumentedClient {
	return &InstrumentedClient{
		inner:    inner,
		provider: provider,
		quota:    quota,
		logger:   logger,
	}
}

// Invoke checks the quota, delegates, and counts the issued query.
func (c *InstrumentedClient) Invoke(ctx context.Context, prompt string) (string, error) {
	if c.quota != nil {
		if err := c.quota.Check(ctx); err != nil {
			c.logger.Error("Query quota exceeded", zap.String("provider", c.provider), zap.Error(err))
			return "", fmt.Errorf("quota check: %w", err)
		}
	}

	start := time.Now()
	text, err := c.inner.Invoke(ctx, prompt)
	duration := time.Since(start)

	if c.quota != nil {
		c.quota.Record(1)
	}

	if err != nil {
		c.logger.Error("Query request failed",
			zap.String("provider", c.provider),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", fmt.Errorf("invoke: %w", err)
	}

	c.logger.Debug("Query request completed",
		zap.String("provider", c.provider),
		zap.Duration("duration", duration),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("answer_chars", len(text)),
	)
	return text, nil
}

package domain

import "context"

// QueryClient is the remote text-generation contract: one prompt in, generated text out.
type QueryClient interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// HealthChecker verifies query provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

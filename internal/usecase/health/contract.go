package health

import "context"

// GeodataChecker reports whether the feature collection is published.
type GeodataChecker interface {
	Loaded() bool
}

// CachePinger checks answer cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks query provider availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

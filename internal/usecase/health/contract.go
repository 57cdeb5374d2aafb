package health

import "context"

// Pinger checks availability of the search engine or the cache store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ExpansionChecker checks query expansion provider availability.
type ExpansionChecker interface {
	HealthCheck(ctx context.Context) error
}

package observability

import "context"

// Checker is a component gating the readiness probe, such as the catalog
// store or a backing connection pool.
type Checker interface {
	// Name labels the component in the readiness report.
	Name() string

	// Check returns nil when the component can serve. It must return
	// promptly once ctx is done; it runs concurrently with other checks.
	Check(ctx context.Context) error
}

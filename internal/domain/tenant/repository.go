package tenant

import "context"

// Repository defines the interface for persisting Tenant entities.
//
// CompareAndSwapState is the system's only concurrency-control point: the
// transition shared -> promoting must be a single conditional update against
// the store, never a read-then-write, because promotion triggers may arrive
// from independent process instances.
type Repository interface {
	// FindBySlug retrieves a tenant by its slug. Returns (nil, nil) when
	// the tenant does not exist.
	FindBySlug(ctx context.Context, slug string) (*Tenant, error)

	// Save persists a tenant (create or update).
	Save(ctx context.Context, t *Tenant) error

	// CompareAndSwapState atomically moves a tenant from expected to next.
	// It returns false with no error when the tenant was not in the
	// expected state.
	CompareAndSwapState(ctx context.Context, slug string, expected, next IsolationState) (bool, error)

	// ListByState retrieves tenants in any of the given states.
	ListByState(ctx context.Context, states []IsolationState, limit int) ([]*Tenant, error)

	// ResetToShared is the operator escape hatch: it conditionally moves a
	// tenant out of promoting or promotion_failed back to shared. Returns
	// false when the tenant was not in a resettable state.
	ResetToShared(ctx context.Context, slug string) (bool, error)
}

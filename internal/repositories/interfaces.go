package repositories

import (
	"context"
	"time"

	domain "github.com/virtualmegamall/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartSnapshotFunc receives the full cart contents whenever the underlying
// documents change. Lines arrive newest-first by AddedAt.
type CartSnapshotFunc func(lines []domain.CartLineItem)

// CartRepository persists per-user cart line items keyed by product id.
type CartRepository interface {
	// GetLine fetches a single cart line. A missing line surfaces as a
	// RepositoryError with IsNotFound.
	GetLine(ctx context.Context, userID, productID string) (domain.CartLineItem, error)
	// SetLine upserts a cart line under users/{userID}/cart/{productID}.
	SetLine(ctx context.Context, userID string, line domain.CartLineItem) error
	// DeleteLine removes a cart line. Deleting an absent line succeeds.
	DeleteLine(ctx context.Context, userID, productID string) error
	// ListLines returns every cart line ordered by AddedAt descending.
	ListLines(ctx context.Context, userID string) ([]domain.CartLineItem, error)
	// Clear removes all cart lines for the user in a single batched write.
	Clear(ctx context.Context, userID string) error
	// Watch streams cart snapshots to fn until the returned stop function is
	// called or ctx is cancelled.
	Watch(ctx context.Context, userID string, fn CartSnapshotFunc) (stop func(), err error)
}

// OrderListFilter bounds order history queries. StartAfterCreatedAt resumes
// a newest-first listing after the given creation timestamp.
type OrderListFilter struct {
	Limit               int
	StartAfterCreatedAt time.Time
}

// OrderRepository persists materialized orders keyed by checkout session id.
type OrderRepository interface {
	// Create writes the order document. When an order for the same session
	// already exists the error reports IsConflict.
	Create(ctx context.Context, order domain.Order) error
	// FindBySessionID loads the order materialized for the given session.
	FindBySessionID(ctx context.Context, sessionID string) (domain.Order, error)
	// FindByID loads an order by document id.
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// ListByOwner returns the user's orders newest-first.
	ListByOwner(ctx context.Context, userID string, filter OrderListFilter) ([]domain.Order, error)
}

// HealthRepository aggregates dependency health probes for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

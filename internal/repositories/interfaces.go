package repositories

import (
	"context"

	"github.com/techbantu/GharSe-sub003/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Catalog() CatalogRepository
	Carts() CartRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CatalogRepository reads the menu snapshot. Only rows marked available are returned.
type CatalogRepository interface {
	ListAvailableItems(ctx context.Context) ([]domain.CatalogItem, error)
}

// CartRepository reads a customer's stored cart lines. Implementations may report a cart that
// was never created either as an empty snapshot or as a RepositoryError with IsNotFound.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.CartSnapshot, error)
}

// HealthRepository probes downstream dependencies for the readiness endpoint.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}

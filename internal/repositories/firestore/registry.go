package firestore

import (
	"context"
	"errors"

	"google.golang.org/api/iterator"

	pfirestore "github.com/techbantu/GharSe-sub003/internal/platform/firestore"
	"github.com/techbantu/GharSe-sub003/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind repositories.Registry.
type Registry struct {
	provider *pfirestore.Provider
	catalog  repositories.CatalogRepository
	carts    repositories.CartRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// RegistryOption customises the registry, e.g. to decorate the catalog with a cache.
type RegistryOption func(*Registry)

// WithCatalogDecorator wraps the Firestore catalog reader.
func WithCatalogDecorator(decorate func(repositories.CatalogRepository) repositories.CatalogRepository) RegistryOption {
	return func(r *Registry) {
		if decorate != nil {
			r.catalog = decorate(r.catalog)
		}
	}
}

// WithHealthChecks appends readiness probes beyond the built-in Firestore probe.
func WithHealthChecks(checks ...repositories.DependencyCheck) RegistryOption {
	return func(r *Registry) {
		existing := []repositories.DependencyCheck{r.firestoreCheck()}
		health, err := repositories.NewDependencyHealthRepository(append(existing, checks...))
		if err == nil {
			r.health = health
		}
	}
}

func NewRegistry(provider *pfirestore.Provider, opts ...RegistryOption) (*Registry, error) {
	menu, err := NewMenuRepository(provider)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	registry := &Registry{provider: provider, catalog: menu, carts: carts}
	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{registry.firestoreCheck()})
	if err != nil {
		return nil, err
	}
	registry.health = health

	for _, opt := range opts {
		if opt != nil {
			opt(registry)
		}
	}
	return registry, nil
}

func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

func (r *Registry) Carts() repositories.CartRepository { return r.carts }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

func (r *Registry) firestoreCheck() repositories.DependencyCheck {
	return repositories.DependencyCheck{
		Name: "firestore",
		Check: func(ctx context.Context) error {
			client, err := r.provider.Client(ctx)
			if err != nil {
				return err
			}
			iter := client.Collection(menuItemsCollection).Limit(1).Documents(ctx)
			defer iter.Stop()
			if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
				return pfirestore.WrapError("menuItems.ping", err)
			}
			return nil
		},
	}
}

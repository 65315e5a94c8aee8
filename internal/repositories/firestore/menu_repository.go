package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"

	"github.com/techbantu/GharSe-sub003/internal/domain"
	pfirestore "github.com/techbantu/GharSe-sub003/internal/platform/firestore"
	"github.com/techbantu/GharSe-sub003/internal/repositories"
)

const menuItemsCollection = "menuItems"

// MenuRepository reads the kitchen menu from the menuItems collection.
type MenuRepository struct {
	base *pfirestore.BaseRepository[menuItemDocument]
}

var _ repositories.CatalogRepository = (*MenuRepository)(nil)

func NewMenuRepository(provider *pfirestore.Provider) (*MenuRepository, error) {
	if provider == nil {
		return nil, errors.New("menu repository requires firestore provider")
	}
	return &MenuRepository{
		base: pfirestore.NewBaseRepository[menuItemDocument](provider, menuItemsCollection, nil),
	}, nil
}

// ListAvailableItems returns available menu rows ordered by category then name, so that
// matching ties resolve the same way on every read.
func (r *MenuRepository) ListAvailableItems(ctx context.Context) ([]domain.CatalogItem, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("menu repository not initialised")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("isAvailable", "==", true)
	})
	if err != nil {
		return nil, err
	}

	items := make([]domain.CatalogItem, 0, len(docs))
	for _, doc := range docs {
		name := strings.TrimSpace(doc.Data.Name)
		if name == "" || doc.Data.Price <= 0 {
			continue
		}
		items = append(items, domain.CatalogItem{
			ID:          doc.ID,
			Name:        name,
			Price:       doc.Data.Price,
			Category:    strings.TrimSpace(doc.Data.Category),
			IsAvailable: true,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

type menuItemDocument struct {
	Name        string  `firestore:"name"`
	Price       float64 `firestore:"price"`
	Category    string  `firestore:"category"`
	IsAvailable bool    `firestore:"isAvailable"`
}

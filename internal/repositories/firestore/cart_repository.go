package firestore

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/techbantu/GharSe-sub003/internal/domain"
	pfirestore "github.com/techbantu/GharSe-sub003/internal/platform/firestore"
	"github.com/techbantu/GharSe-sub003/internal/repositories"
)

const (
	cartCollection      = "carts"
	cartItemsCollection = "items"
)

// CartRepository reads cart lines stored under carts/{uid}/items.
type CartRepository struct {
	provider *pfirestore.Provider
}

var _ repositories.CartRepository = (*CartRepository)(nil)

func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{provider: provider}, nil
}

// GetCart loads the cart lines for the given user. A user without stored lines has an empty cart.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.CartSnapshot, error) {
	if r == nil || r.provider == nil {
		return domain.CartSnapshot{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" || strings.Contains(uid, "/") {
		return domain.CartSnapshot{}, errors.New("cart repository: valid user id is required")
	}

	items := pfirestore.NewBaseRepository[cartItemDocument](r.provider, path.Join(cartCollection, uid, cartItemsCollection), nil)
	docs, err := items.Query(ctx, nil)
	if err != nil {
		return domain.CartSnapshot{}, err
	}

	cart := domain.CartSnapshot{Items: make([]domain.CartLine, 0, len(docs))}
	for _, doc := range docs {
		if doc.Data.Quantity <= 0 {
			continue
		}
		itemID := strings.TrimSpace(doc.Data.MenuItemID)
		if itemID == "" {
			itemID = doc.ID
		}
		cart.Items = append(cart.Items, domain.CartLine{ItemID: itemID, Quantity: doc.Data.Quantity})
	}
	return cart, nil
}

type cartItemDocument struct {
	MenuItemID string `firestore:"menuItemId"`
	Quantity   int    `firestore:"quantity"`
}

//go:build integration

package firestore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/techbantu/GharSe-sub003/internal/domain"
	pconfig "github.com/techbantu/GharSe-sub003/internal/platform/config"
	pfirestore "github.com/techbantu/GharSe-sub003/internal/platform/firestore"
)

func TestRegistryIntegration(t *testing.T) {
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "gharse-registry-test", EmulatorHost: host})
	registry, err := NewRegistry(provider)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	t.Cleanup(func() {
		_ = registry.Close(context.Background())
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := provider.Client(ctx)
	if err != nil {
		t.Fatalf("provider client: %v", err)
	}
	seed := map[string]map[string]any{
		"y9": {"name": "Butter Chicken", "price": 299, "category": "Main", "isAvailable": true},
		"d2": {"name": "Dal Makhani", "price": 199, "category": "Main", "isAvailable": true},
		"k1": {"name": "Kulfi", "price": 79, "category": "Desserts", "isAvailable": true},
		"s0": {"name": "Seasonal Special", "price": 349, "category": "Main", "isAvailable": false},
	}
	for id, data := range seed {
		if _, err := client.Collection(menuItemsCollection).Doc(id).Set(ctx, data); err != nil {
			t.Fatalf("seed menu item %s: %v", id, err)
		}
	}
	if _, err := client.Collection("carts/user-1/items").Doc("line-1").Set(ctx, map[string]any{"menuItemId": "y9", "quantity": 2}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	items, err := registry.Catalog().ListAvailableItems(ctx)
	if err != nil {
		t.Fatalf("list available items: %v", err)
	}
	want := []string{"k1", "y9", "d2"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %#v", len(want), items)
	}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("expected item %d to be %s, got %s", i, id, items[i].ID)
		}
	}

	cart, err := registry.Carts().GetCart(ctx, "user-1")
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0] != (domain.CartLine{ItemID: "y9", Quantity: 2}) {
		t.Fatalf("unexpected cart %#v", cart)
	}

	empty, err := registry.Carts().GetCart(ctx, "user-without-cart")
	if err != nil {
		t.Fatalf("get empty cart: %v", err)
	}
	if !empty.IsEmpty() {
		t.Fatalf("expected empty cart, got %#v", empty)
	}

	report, err := registry.Health().Collect(ctx)
	if err != nil {
		t.Fatalf("collect health: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected healthy firestore, got %#v", report)
	}
}

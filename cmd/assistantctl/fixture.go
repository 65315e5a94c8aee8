package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/techbantu/GharSe-sub003/internal/domain"
)

// fixture is the YAML document describing one replayable turn.
type fixture struct {
	Message   string            `yaml:"message"`
	UserID    string            `yaml:"userId"`
	Catalog   []fixtureItem     `yaml:"catalog"`
	Cart      []fixtureCartLine `yaml:"cart"`
	ToolCalls []fixtureToolCall `yaml:"toolCalls"`
}

type fixtureItem struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	Price     float64 `yaml:"price"`
	Category  string  `yaml:"category"`
	Available *bool   `yaml:"available"`
}

type fixtureCartLine struct {
	ItemID   string `yaml:"itemId"`
	Quantity int    `yaml:"quantity"`
}

type fixtureToolCall struct {
	Name    string `yaml:"name"`
	Payload any    `yaml:"payload"`
}

func loadFixture(path string) (fixture, error) {
	if strings.TrimSpace(path) == "" {
		return fixture{}, errors.New("fixture path is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	var f fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fixture{}, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	for i, item := range f.Catalog {
		if strings.TrimSpace(item.ID) == "" || strings.TrimSpace(item.Name) == "" {
			return fixture{}, fmt.Errorf("fixture catalog[%d]: id and name are required", i)
		}
	}
	return f, nil
}

// catalogItems returns the catalog rows; rows without an explicit availability flag are available.
func (f fixture) catalogItems() []domain.CatalogItem {
	items := make([]domain.CatalogItem, 0, len(f.Catalog))
	for _, item := range f.Catalog {
		available := item.Available == nil || *item.Available
		items = append(items, domain.CatalogItem{
			ID:          item.ID,
			Name:        item.Name,
			Price:       item.Price,
			Category:    item.Category,
			IsAvailable: available,
		})
	}
	return items
}

func (f fixture) cartSnapshot() *domain.CartSnapshot {
	if f.Cart == nil {
		return nil
	}
	cart := domain.CartSnapshot{Items: make([]domain.CartLine, 0, len(f.Cart))}
	for _, line := range f.Cart {
		cart.Items = append(cart.Items, domain.CartLine{ItemID: line.ItemID, Quantity: line.Quantity})
	}
	return &cart
}

func (f fixture) toolCalls() ([]domain.ToolCallResult, error) {
	calls := make([]domain.ToolCallResult, 0, len(f.ToolCalls))
	for i, call := range f.ToolCalls {
		result := domain.ToolCallResult{Name: call.Name}
		if call.Payload != nil {
			payload, err := json.Marshal(call.Payload)
			if err != nil {
				return nil, fmt.Errorf("fixture toolCalls[%d]: %w", i, err)
			}
			result.Payload = payload
		}
		calls = append(calls, result)
	}
	return calls, nil
}

// staticCatalog serves the fixture rows to the resolution pipeline.
type staticCatalog []domain.CatalogItem

func (c staticCatalog) ListAvailableItems(context.Context) ([]domain.CatalogItem, error) {
	items := make([]domain.CatalogItem, 0, len(c))
	for _, item := range c {
		if item.IsAvailable {
			items = append(items, item)
		}
	}
	return items, nil
}

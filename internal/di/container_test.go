package di

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/techbantu/GharSe-sub003/internal/domain"
	"github.com/techbantu/GharSe-sub003/internal/platform/config"
	"github.com/techbantu/GharSe-sub003/internal/repositories"
)

type memoryRegistry struct {
	items  []domain.CatalogItem
	carts  map[string]domain.CartSnapshot
	closed bool
}

func (r *memoryRegistry) Close(context.Context) error {
	r.closed = true
	return nil
}

func (r *memoryRegistry) Catalog() repositories.CatalogRepository { return memoryCatalog(r.items) }

func (r *memoryRegistry) Carts() repositories.CartRepository { return memoryCarts(r.carts) }

func (r *memoryRegistry) Health() repositories.HealthRepository { return memoryHealth{} }

type memoryCatalog []domain.CatalogItem

func (c memoryCatalog) ListAvailableItems(context.Context) ([]domain.CatalogItem, error) {
	return append([]domain.CatalogItem(nil), c...), nil
}

type memoryCarts map[string]domain.CartSnapshot

func (c memoryCarts) GetCart(_ context.Context, userID string) (domain.CartSnapshot, error) {
	return c[userID], nil
}

type memoryHealth struct{}

func (memoryHealth) Collect(context.Context) (domain.HealthReport, error) {
	return domain.HealthReport{Status: domain.HealthStatusOK, GeneratedAt: time.Now()}, nil
}

type recordingPublisher struct {
	events []domain.AssistantTurnEvent
}

func (p *recordingPublisher) PublishAssistantTurn(_ context.Context, event domain.AssistantTurnEvent) error {
	p.events = append(p.events, event)
	return nil
}

func testConfig(t *testing.T, overrides map[string]string) config.Config {
	t.Helper()
	env := map[string]string{"API_FIREBASE_PROJECT_ID": "gharse-test"}
	for k, v := range overrides {
		env[k] = v
	}
	cfg, err := config.Load(context.Background(), config.WithEnvMap(env), config.WithoutSystemEnv(), config.WithEnvFile(""))
	require.NoError(t, err)
	return cfg
}

func TestContainerServesAssistantTurn(t *testing.T) {
	reg := &memoryRegistry{
		items: []domain.CatalogItem{
			{ID: "y9", Name: "Butter Chicken", Price: 299, Category: "Curries", IsAvailable: true},
			{ID: "n4", Name: "Garlic Naan", Price: 60, Category: "Breads", IsAvailable: true},
		},
	}
	publisher := &recordingPublisher{}
	provider := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	container, err := NewContainer(context.Background(),
		testConfig(t, map[string]string{"API_FEATURE_TURN_EVENTS": "true"}),
		reg,
		WithTurnPublisher(publisher),
		WithMeterProvider(provider),
	)
	require.NoError(t, err)
	require.NotNil(t, container.RateLimiter)

	router := container.Router(RouterOptions{TraceProject: "gharse-test"})
	body := `{"message":"Pair the **Butter Chicken** (₹299) with Garlic Naan for ₹60.","cart":{"items":[{"itemId":"d2","quantity":1}]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant/actions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Layer   string `json:"layer"`
		Actions []struct {
			Type   string `json:"type"`
			ItemID string `json:"itemId"`
		} `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "extraction", resp.Layer)

	var types []string
	for _, action := range resp.Actions {
		types = append(types, action.Type)
	}
	require.Equal(t, []string{"add_to_cart", "add_to_cart", "add_all_to_cart", "checkout"}, types)
	// The "for" rule runs before the parenthesised-price rule.
	require.Equal(t, "n4", resp.Actions[0].ItemID)
	require.Equal(t, "y9", resp.Actions[1].ItemID)

	require.Len(t, publisher.events, 1)
	require.Equal(t, "extraction", publisher.events[0].Layer)

	require.NoError(t, container.Close(context.Background()))
	require.True(t, reg.closed)
}

func TestContainerSkipsPublisherWhenTurnEventsDisabled(t *testing.T) {
	reg := &memoryRegistry{}
	publisher := &recordingPublisher{}
	container, err := NewContainer(context.Background(), testConfig(t, nil), reg, WithTurnPublisher(publisher))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant/actions", strings.NewReader(`{"message":"Hello"}`))
	container.Router(RouterOptions{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, publisher.events)
}

func TestNewContainerRequiresRegistry(t *testing.T) {
	_, err := NewContainer(context.Background(), config.Config{}, nil)
	require.Error(t, err)
}

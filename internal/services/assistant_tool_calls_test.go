package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/techbantu/GharSe-sub003/internal/domain"
)

func TestCanonicalToolName(t *testing.T) {
	t.Parallel()

	require.Equal(t, domain.ToolCatalogSearch, canonicalToolName(" Catalog_Search "))
	require.Equal(t, domain.ToolCheckoutTrigger, canonicalToolName("CHECKOUT-TRIGGER"))
	require.Equal(t, domain.ToolName("weather"), canonicalToolName("weather"))
}

func TestParseToolEvidence(t *testing.T) {
	t.Parallel()

	popular := `{"items":[
		{"id":"p1","name":"One","price":1},{"id":"p2","name":"Two","price":2},
		{"id":"p3","name":"Three","price":3},{"id":"p4","name":"Four","price":4},
		{"id":"p5","name":"Five","price":5},{"id":"p6","name":"Six","price":6}]}`

	evidence := parseToolEvidence([]domain.ToolCallResult{
		toolCall("popularity-ranking", popular),
		toolCall("catalog-search", `{"success":true,"items":[{"id":"x1","name":"Chicken Tikka Masala","price":289,"category":"Main"},{"id":"x2","name":"Sold Out Curry","price":10,"isAvailable":false},{"id":"","name":"Nameless"}]}`),
		toolCall("catalog-search", `{"success":false,"items":[{"id":"x9","name":"Ghost","price":1}]}`),
		toolCall("catalog-search", `not json`),
		toolCall("urgency-lookup", `{"items":[{"itemId":"x1","level":"high","message":"Only 2 left","score":0.9}]}`),
		toolCall("cart_mutation", ``),
		toolCall("checkout-trigger", `{"success":false}`),
		toolCall("weather", `{"sunny":true}`),
	}, DefaultPopularLimit)

	require.Equal(t, []domain.CatalogItem{{ID: "x1", Name: "Chicken Tikka Masala", Price: 289, Category: "Main", IsAvailable: true}}, evidence.catalogItems)
	require.Len(t, evidence.popularItems, 5)
	require.Equal(t, "p5", evidence.popularItems[4].ID)
	require.Equal(t, domain.Urgency{Level: "high", Message: "Only 2 left", Score: 0.9}, evidence.urgency["x1"])
	require.True(t, evidence.cartMutated)
	require.False(t, evidence.checkoutTriggered)
	require.Equal(t, []SkippedToolCall{
		{Name: "catalog-search", Reason: "unsuccessful call"},
		{Name: "catalog-search", Reason: "malformed payload"},
		{Name: "checkout-trigger", Reason: "unsuccessful call"},
	}, evidence.skipped)
}

func TestParseUrgencyArrayPayload(t *testing.T) {
	t.Parallel()

	urgency, reason := parseUrgency([]byte(` [{"id":"a1","level":"medium","score":0.4},{"level":"orphan"}]`))
	require.Empty(t, reason)
	require.Equal(t, map[string]domain.Urgency{"a1": {Level: "medium", Score: 0.4}}, urgency)

	_, reason = parseUrgency(nil)
	require.Equal(t, "empty payload", reason)
}

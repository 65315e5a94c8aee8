package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/techbantu/GharSe-sub003/internal/domain"
)

func TestEvidenceReconcilerToolCallsSkipTextFallback(t *testing.T) {
	t.Parallel()

	spy := &spyExtractor{delegate: NewPatternExtractor(DefaultMinMentionLength)}
	catalog := &stubCatalogSource{items: menuFixture()}
	reconciler := NewEvidenceReconciler(EvidenceReconcilerDeps{Extractor: spy})

	got, err := reconciler.Reconcile(context.Background(), []domain.ToolCallResult{
		toolCall("catalog-search", `{"success":true,"items":[{"id":"x1","name":"Chicken Tikka Masala","price":289,"category":"Main"}]}`),
	}, "Try our Butter Chicken at ₹299 or the Chicken Tikka Masala", catalog)
	require.NoError(t, err)

	require.Zero(t, spy.calls, "extractor must not run when tool calls resolved items")
	require.Zero(t, catalog.calls, "catalog must not be read when tool calls resolved items")
	require.Equal(t, domain.EvidenceToolCalls, got.Layer)
	require.Len(t, got.Resolved, 1)
	require.Equal(t, "x1", got.Resolved[0].ID)
	require.Equal(t, 1.0, got.Resolved[0].Confidence)
}

func TestEvidenceReconcilerTextFallback(t *testing.T) {
	t.Parallel()

	catalog := &stubCatalogSource{items: []domain.CatalogItem{
		{ID: "y9", Name: "Butter Chicken", Price: 299, Category: "Main", IsAvailable: true},
		{ID: "d2", Name: "Dal Makhani", Price: 199, Category: "Main", IsAvailable: true},
	}}
	reconciler := NewEvidenceReconciler(EvidenceReconcilerDeps{})

	got, err := reconciler.Reconcile(context.Background(), nil, "Try our Buter Chiken, its amazing", catalog)
	require.NoError(t, err)
	require.Equal(t, 1, catalog.calls)
	require.Equal(t, domain.EvidenceExtraction, got.Layer)
	require.Len(t, got.Resolved, 1)
	require.Equal(t, "y9", got.Resolved[0].ID)
	require.Equal(t, domain.EvidenceExtraction, got.Resolved[0].Layer)
	require.GreaterOrEqual(t, got.Resolved[0].Confidence, DefaultFuzzyThreshold)
	require.Equal(t, got.Resolved, got.Mentioned)
}

func TestEvidenceReconcilerNoMentionsSkipsCatalog(t *testing.T) {
	t.Parallel()

	catalog := &stubCatalogSource{err: errors.New("should not be called")}
	got, err := NewEvidenceReconciler(EvidenceReconcilerDeps{}).Reconcile(context.Background(), nil, "what would you like today?", catalog)
	require.NoError(t, err)
	require.Zero(t, catalog.calls)
	require.Equal(t, domain.EvidenceNone, got.Layer)
	require.Empty(t, got.Resolved)
	require.Empty(t, got.Mentioned)
}

func TestEvidenceReconcilerCatalogFailure(t *testing.T) {
	t.Parallel()

	catalog := &stubCatalogSource{err: errors.New("firestore down")}
	_, err := NewEvidenceReconciler(EvidenceReconcilerDeps{}).Reconcile(context.Background(), nil, "Try our Butter Chicken at ₹299", catalog)
	require.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestEvidenceReconcilerStockNegationOverride(t *testing.T) {
	t.Parallel()

	calls := []domain.ToolCallResult{
		toolCall("catalog-search", `{"success":true,"items":[{"id":"b1","name":"Hyderabadi Biryani","price":349},{"id":"b2","name":"Veg Pulao","price":229}]}`),
	}
	got, err := NewEvidenceReconciler(EvidenceReconcilerDeps{}).Reconcile(context.Background(), calls, "Sorry, we're out of that right now!", nil)
	require.NoError(t, err)
	require.Len(t, got.Mentioned, 2)
	require.Equal(t, "b1", got.Mentioned[0].ID)
	require.Equal(t, "b2", got.Mentioned[1].ID)
}

func TestEvidenceReconcilerMentionFilter(t *testing.T) {
	t.Parallel()

	items := `{"items":[
		{"id":"m1","name":"Chicken Tikka Masala","price":289},
		{"id":"m2","name":"Paneer Butter Roll","price":159},
		{"id":"m3","name":"Gulab Jamun","price":89},
		{"id":"m4","name":"Ginger Chai","price":49}]}`

	tests := []struct {
		name    string
		message string
		want    []string
	}{
		{name: "verbatim name", message: "The Chicken Tikka Masala is our best seller.", want: []string{"m1"}},
		{name: "two significant words", message: "That paneer dish in a buttery gravy is great.", want: []string{"m2"}},
		{name: "long message word inside name", message: "Finish with something sweet like jamun.", want: []string{"m3"}},
		{name: "nothing mentioned", message: "Anything else for you?", want: []string{}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewEvidenceReconciler(EvidenceReconcilerDeps{}).Reconcile(
				context.Background(),
				[]domain.ToolCallResult{toolCall("catalog-search", items)},
				tc.message,
				nil,
			)
			require.NoError(t, err)
			require.Len(t, got.Resolved, 4)
			ids := []string{}
			for _, item := range got.Mentioned {
				ids = append(ids, item.ID)
			}
			require.Equal(t, tc.want, ids)
		})
	}
}

func TestEvidenceReconcilerDedupeAndUrgency(t *testing.T) {
	t.Parallel()

	calls := []domain.ToolCallResult{
		toolCall("popularity-ranking", `{"items":[{"id":"p1","name":"Masala Dosa","price":149},{"id":"s1","name":"Sambar Vada","price":99}]}`),
		toolCall("catalog-search", `{"items":[{"id":"s1","name":"Sambar Vada","price":99}]}`),
		toolCall("urgency-lookup", `{"items":[{"id":"p1","level":"high","message":"Only 3 left today","score":0.85}]}`),
	}
	got, err := NewEvidenceReconciler(EvidenceReconcilerDeps{}).Reconcile(context.Background(), calls, "Masala Dosa and Sambar Vada are a classic combo", nil)
	require.NoError(t, err)
	require.Len(t, got.Resolved, 2)
	require.Equal(t, "s1", got.Resolved[0].ID, "catalog-search items resolve before popularity items")
	require.Equal(t, "p1", got.Resolved[1].ID)
	require.NotNil(t, got.Resolved[1].Urgency)
	require.Equal(t, "high", got.Resolved[1].Urgency.Level)
	require.Len(t, got.Mentioned, 2)
	require.Equal(t, "Only 3 left today", got.Mentioned[1].Urgency.Message)
}

func TestResolvedSetKeepsMaxConfidence(t *testing.T) {
	t.Parallel()

	set := newResolvedSet()
	set.add(domain.ResolvedItem{ID: "a", Name: "First", Confidence: 0.85})
	set.add(domain.ResolvedItem{ID: "b", Name: "Second", Confidence: 0.9})
	set.add(domain.ResolvedItem{ID: "a", Name: "First again", Confidence: 1.0})
	set.add(domain.ResolvedItem{ID: "a", Name: "Weaker", Confidence: 0.81})

	items := set.items()
	require.Len(t, items, 2)
	require.Equal(t, "a", items[0].ID)
	require.Equal(t, "First", items[0].Name)
	require.Equal(t, 1.0, items[0].Confidence)
	require.Equal(t, "b", items[1].ID)
}

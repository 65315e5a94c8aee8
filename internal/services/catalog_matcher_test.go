package services

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/techbantu/GharSe-sub003/internal/domain"
)

func menuFixture() []domain.CatalogItem {
	return []domain.CatalogItem{
		{ID: "a1", Name: "Paneer Tikka", Price: 249, Category: "Starters", IsAvailable: true},
		{ID: "y9", Name: "Butter Chicken", Price: 299, Category: "Main", IsAvailable: true},
		{ID: "d2", Name: "Dal Makhani", Price: 199, Category: "Main", IsAvailable: true},
		{ID: "r7", Name: "Jeera Rice", Price: 99, Category: "Sides", IsAvailable: true},
	}
}

func TestCatalogMatcherExactMatch(t *testing.T) {
	t.Parallel()

	matcher := NewCatalogMatcher(DefaultFuzzyThreshold)
	got, ok := matcher.Match("  butter CHICKEN ", menuFixture())
	require.True(t, ok)
	require.Equal(t, domain.MatchedItem{ID: "y9", Name: "Butter Chicken", Price: 299, Category: "Main", Confidence: 1.0}, got)
}

func TestCatalogMatcherFuzzyMatch(t *testing.T) {
	t.Parallel()

	matcher := NewCatalogMatcher(DefaultFuzzyThreshold)
	got, ok := matcher.Match("Buter Chiken", menuFixture())
	require.True(t, ok)
	require.Equal(t, "y9", got.ID)
	require.InDelta(t, 1-2.0/14.0, got.Confidence, 1e-9)
	require.GreaterOrEqual(t, got.Confidence, DefaultFuzzyThreshold)
	require.Less(t, got.Confidence, 1.0)
}

func TestCatalogMatcherNoMatch(t *testing.T) {
	t.Parallel()

	matcher := NewCatalogMatcher(DefaultFuzzyThreshold)
	tests := []struct {
		name    string
		mention string
		catalog []domain.CatalogItem
	}{
		{name: "unrelated dish", mention: "Chocolate Lava Cake", catalog: menuFixture()},
		{name: "blank mention", mention: "   ", catalog: menuFixture()},
		{name: "empty catalog", mention: "Butter Chicken", catalog: nil},
		{
			name:    "unavailable row",
			mention: "Butter Chicken",
			catalog: []domain.CatalogItem{{ID: "y9", Name: "Butter Chicken", Price: 299, IsAvailable: false}},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, ok := matcher.Match(tc.mention, tc.catalog)
			require.False(t, ok)
		})
	}
}

func TestCatalogMatcherTiesKeepCatalogOrder(t *testing.T) {
	t.Parallel()

	catalog := []domain.CatalogItem{
		{ID: "first", Name: "Paneer Tikkas", Price: 10, IsAvailable: true},
		{ID: "second", Name: "Paneer Tikkaz", Price: 12, IsAvailable: true},
	}
	got, ok := NewCatalogMatcher(DefaultFuzzyThreshold).Match("Paneer Tikka", catalog)
	require.True(t, ok)
	require.Equal(t, "first", got.ID)
}

func TestCatalogMatcherThresholdDefaults(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultFuzzyThreshold, NewCatalogMatcher(0).Threshold())
	require.Equal(t, DefaultFuzzyThreshold, NewCatalogMatcher(1.5).Threshold())
	require.Equal(t, 0.9, NewCatalogMatcher(0.9).Threshold())

	_, ok := NewCatalogMatcher(0.9).Match("Buter Chiken", menuFixture())
	require.False(t, ok, "0.857 similarity must not clear a 0.9 threshold")
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1.0, Similarity("", ""))
	require.Equal(t, 1.0, Similarity("Dal", "dal"))
	require.Equal(t, 0.0, Similarity("abc", "xyz"))
	require.InDelta(t, 0.8, Similarity("rice", "ricE!"), 1e-9)
}

func TestCatalogMatcherProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	matcher := NewCatalogMatcher(DefaultFuzzyThreshold)

	nonEmptyAlpha := gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 })

	properties.Property("exact case-insensitive name yields confidence 1.0", prop.ForAll(
		func(name string) bool {
			catalog := []domain.CatalogItem{
				{ID: "decoy-1", Name: "decoy 1", Price: 1, IsAvailable: true},
				{ID: "target", Name: name, Price: 2, IsAvailable: true},
				{ID: "decoy-2", Name: "decoy 2", Price: 3, IsAvailable: true},
			}
			got, ok := matcher.Match(strings.ToUpper(name), catalog)
			return ok && got.ID == "target" && got.Confidence == 1.0
		},
		nonEmptyAlpha,
	))

	properties.Property("a closer edit never scores lower", prop.ForAll(
		func(target, suffix string) bool {
			closer := target + suffix[:len(suffix)-1]
			further := target + suffix
			return Similarity(closer, target) >= Similarity(further, target)
		},
		nonEmptyAlpha,
		nonEmptyAlpha,
	))

	properties.Property("mentions below threshold never match", prop.ForAll(
		func(name, digits string) bool {
			catalog := []domain.CatalogItem{{ID: "only", Name: name, Price: 5, IsAvailable: true}}
			_, ok := matcher.Match(digits, catalog)
			return !ok
		},
		nonEmptyAlpha,
		gen.NumString().SuchThat(func(s string) bool { return len(s) > 0 }),
	))

	properties.Property("matches always reach the threshold", prop.ForAll(
		func(mention string) bool {
			got, ok := matcher.Match(mention, menuFixture())
			return !ok || got.Confidence >= DefaultFuzzyThreshold
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

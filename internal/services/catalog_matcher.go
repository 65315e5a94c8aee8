package services

import (
	"github.com/techbantu/GharSe-sub003/internal/domain"
	"github.com/techbantu/GharSe-sub003/internal/platform/textutil"
)

// DefaultFuzzyThreshold is the minimum similarity a fuzzy catalog match must reach.
const DefaultFuzzyThreshold = 0.8

// CatalogMatcher ties free-text item names to rows of a catalog snapshot.
// Matching is exact (case-insensitive) first and normalised edit-distance second.
type CatalogMatcher struct {
	threshold float64
}

// NewCatalogMatcher returns a matcher accepting fuzzy matches at or above threshold.
// Values outside (0, 1] fall back to DefaultFuzzyThreshold.
func NewCatalogMatcher(threshold float64) *CatalogMatcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultFuzzyThreshold
	}
	return &CatalogMatcher{threshold: threshold}
}

// Threshold reports the minimum accepted fuzzy similarity.
func (m *CatalogMatcher) Threshold() float64 {
	return m.threshold
}

// Match returns the catalog row the name refers to. The boolean is false when no available
// row reaches the threshold, which is an ordinary outcome.
func (m *CatalogMatcher) Match(name string, catalog []domain.CatalogItem) (domain.MatchedItem, bool) {
	needle := textutil.Fold(name)
	if needle == "" || len(catalog) == 0 {
		return domain.MatchedItem{}, false
	}

	folded := make([]string, len(catalog))
	for i, item := range catalog {
		if !item.IsAvailable {
			continue
		}
		folded[i] = textutil.Fold(item.Name)
		if folded[i] == needle {
			return matchedFromCatalog(item, 1.0), true
		}
	}

	best := -1
	bestScore := 0.0
	for i, item := range catalog {
		if !item.IsAvailable || folded[i] == "" {
			continue
		}
		score := similarity(needle, folded[i])
		if score < m.threshold {
			continue
		}
		// strict comparison keeps the first row on ties
		if best < 0 || score > bestScore {
			best = i
			bestScore = score
		}
		if bestScore >= 1 {
			break
		}
	}
	if best < 0 {
		return domain.MatchedItem{}, false
	}
	return matchedFromCatalog(catalog[best], bestScore), true
}

// Similarity returns 1 - levenshtein(a, b)/max(len(a), len(b)) over the folded forms of a and b.
func Similarity(a, b string) float64 {
	return similarity(textutil.Fold(a), textutil.Fold(b))
}

func similarity(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func matchedFromCatalog(item domain.CatalogItem, confidence float64) domain.MatchedItem {
	return domain.MatchedItem{
		ID:         item.ID,
		Name:       item.Name,
		Price:      item.Price,
		Category:   item.Category,
		Confidence: confidence,
	}
}

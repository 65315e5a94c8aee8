package services

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/techbantu/GharSe-sub003/internal/domain"
)

var stockNegationPhrases = []string{"out of", "fresh out", "we're out", "don't have"}

// CatalogSource supplies the point-in-time catalog snapshot used by the text fallback.
type CatalogSource interface {
	ListAvailableItems(ctx context.Context) ([]domain.CatalogItem, error)
}

// Reconciliation is the outcome of merging both evidence layers for one turn.
type Reconciliation struct {
	Layer domain.EvidenceLayer
	// Resolved holds every resolved item in first-resolution order.
	Resolved []domain.ResolvedItem
	// Mentioned is the subset of Resolved the message is about, in the same order.
	Mentioned []domain.ResolvedItem
	Skipped   []SkippedToolCall
}

// EvidenceReconciler nominates catalog items from structured tool-call evidence and, when that
// yields nothing, from mentions extracted out of the message text.
type EvidenceReconciler struct {
	extractor    MentionExtractor
	matcher      *CatalogMatcher
	popularLimit int
}

type EvidenceReconcilerDeps struct {
	Extractor    MentionExtractor
	Matcher      *CatalogMatcher
	PopularLimit int
}

func NewEvidenceReconciler(deps EvidenceReconcilerDeps) *EvidenceReconciler {
	extractor := deps.Extractor
	if extractor == nil {
		extractor = NewPatternExtractor(DefaultMinMentionLength)
	}
	matcher := deps.Matcher
	if matcher == nil {
		matcher = NewCatalogMatcher(DefaultFuzzyThreshold)
	}
	limit := deps.PopularLimit
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	return &EvidenceReconciler{extractor: extractor, matcher: matcher, popularLimit: limit}
}

// Reconcile resolves the items of one turn. The catalog is only read when the text fallback runs,
// and a read failure is the only error returned.
func (r *EvidenceReconciler) Reconcile(ctx context.Context, toolCalls []domain.ToolCallResult, message string, catalog CatalogSource) (Reconciliation, error) {
	evidence := parseToolEvidence(toolCalls, r.popularLimit)
	result := Reconciliation{Layer: domain.EvidenceNone, Skipped: evidence.skipped}

	resolved := newResolvedSet()
	for _, item := range evidence.catalogItems {
		resolved.add(resolvedFromCatalog(item, 1.0, domain.EvidenceToolCalls))
	}
	for _, item := range evidence.popularItems {
		resolved.add(resolvedFromCatalog(item, 1.0, domain.EvidenceToolCalls))
	}

	if resolved.size() > 0 {
		result.Layer = domain.EvidenceToolCalls
	} else {
		mentions := r.extractor.Extract(message)
		if len(mentions) > 0 && catalog != nil {
			items, err := catalog.ListAvailableItems(ctx)
			if err != nil {
				return result, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
			}
			for _, mention := range mentions {
				match, ok := r.matcher.Match(mention.Name, items)
				if !ok {
					continue
				}
				resolved.add(domain.ResolvedItem{
					ID:         match.ID,
					Name:       match.Name,
					Price:      match.Price,
					Category:   match.Category,
					Confidence: match.Confidence,
					Layer:      domain.EvidenceExtraction,
				})
			}
		}
		if resolved.size() > 0 {
			result.Layer = domain.EvidenceExtraction
		}
	}

	resolved.annotate(evidence.urgency)
	result.Resolved = resolved.items()
	result.Mentioned = filterMentioned(result.Resolved, message, result.Layer == domain.EvidenceToolCalls)
	return result, nil
}

// filterMentioned keeps the items the message text refers to. Extraction-layer items carry their
// own textual evidence and always pass.
func filterMentioned(items []domain.ResolvedItem, message string, fromToolCalls bool) []domain.ResolvedItem {
	if len(items) == 0 {
		return nil
	}
	text := strings.ToLower(strings.ReplaceAll(message, "’", "'"))
	negated := fromToolCalls && containsAny(text, stockNegationPhrases)
	messageWords := splitWords(text)

	mentioned := make([]domain.ResolvedItem, 0, len(items))
	for _, item := range items {
		if item.Layer == domain.EvidenceExtraction || negated || mentionsItem(text, messageWords, item.Name) {
			mentioned = append(mentioned, item)
		}
	}
	return mentioned
}

func mentionsItem(text string, messageWords []string, itemName string) bool {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return false
	}
	if strings.Contains(text, name) {
		return true
	}

	significant := 0
	present := 0
	for _, word := range splitWords(name) {
		if utf8.RuneCountInString(word) <= 3 {
			continue
		}
		significant++
		if strings.Contains(text, word) {
			present++
		}
	}
	if significant > 0 && present >= min(2, significant) {
		return true
	}

	for _, word := range messageWords {
		if utf8.RuneCountInString(word) > 4 && strings.Contains(name, word) {
			return true
		}
	}
	return false
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func resolvedFromCatalog(item domain.CatalogItem, confidence float64, layer domain.EvidenceLayer) domain.ResolvedItem {
	return domain.ResolvedItem{
		ID:         item.ID,
		Name:       item.Name,
		Price:      item.Price,
		Category:   item.Category,
		Confidence: confidence,
		Layer:      layer,
	}
}

// resolvedSet deduplicates by catalog id, keeps first-resolution order and never lowers confidence.
type resolvedSet struct {
	order []string
	byID  map[string]*domain.ResolvedItem
}

func newResolvedSet() *resolvedSet {
	return &resolvedSet{byID: make(map[string]*domain.ResolvedItem)}
}

func (s *resolvedSet) add(item domain.ResolvedItem) {
	if existing, ok := s.byID[item.ID]; ok {
		if item.Confidence > existing.Confidence {
			existing.Confidence = item.Confidence
		}
		return
	}
	stored := item
	s.byID[item.ID] = &stored
	s.order = append(s.order, item.ID)
}

func (s *resolvedSet) size() int {
	return len(s.order)
}

func (s *resolvedSet) annotate(urgency map[string]domain.Urgency) {
	for id, value := range urgency {
		if item, ok := s.byID[id]; ok {
			annotation := value
			item.Urgency = &annotation
		}
	}
}

func (s *resolvedSet) items() []domain.ResolvedItem {
	if len(s.order) == 0 {
		return nil
	}
	out := make([]domain.ResolvedItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

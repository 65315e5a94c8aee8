package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/techbantu/GharSe-sub003/internal/domain"
	"github.com/techbantu/GharSe-sub003/internal/platform/textutil"
)

const (
	// DefaultMinMentionLength drops extracted names shorter than this many runes.
	DefaultMinMentionLength = 3

	pricedMentionConfidence = 0.9
	barePhraseConfidence    = 0.6
)

const (
	mentionWord  = `\p{Lu}[\p{L}'’-]*`
	mentionName  = `(` + mentionWord + `(?:[ \t]+(?:(?:and|with|of|in|&)[ \t]+)?` + mentionWord + `)*(?:[ \t]*\([^()\n]*\))?)`
	mentionPrice = `(?:₹|Rs\.?)[ \t]?(\d[\d,]*(?:\.\d{1,2})?)`
)

type mentionRule struct {
	name       string
	pattern    *regexp.Regexp
	nameGroup  int
	priceGroup int
	confidence float64
}

// Rules are tried in order; earlier rules win deduplication.
var mentionRules = []mentionRule{
	{
		name:       "name_at_price",
		pattern:    regexp.MustCompile(mentionName + `[ \t]+at[ \t]+` + mentionPrice),
		nameGroup:  1,
		priceGroup: 2,
		confidence: pricedMentionConfidence,
	},
	{
		name:       "name_for_price",
		pattern:    regexp.MustCompile(mentionName + `[ \t]+for[ \t]+(?:just[ \t]+|only[ \t]+)?` + mentionPrice),
		nameGroup:  1,
		priceGroup: 2,
		confidence: pricedMentionConfidence,
	},
	{
		name:       "name_paren_price",
		pattern:    regexp.MustCompile(mentionName + `[ \t]*\([ \t]*` + mentionPrice + `[ \t]*\)`),
		nameGroup:  1,
		priceGroup: 2,
		confidence: pricedMentionConfidence,
	},
	{
		name:       "price_name",
		pattern:    regexp.MustCompile(mentionPrice + `[ \t]+` + mentionName),
		nameGroup:  2,
		priceGroup: 1,
		confidence: pricedMentionConfidence,
	},
	{
		name:       "name_dash_price",
		pattern:    regexp.MustCompile(mentionName + `[ \t]*[-–—:][ \t]*` + mentionPrice),
		nameGroup:  1,
		priceGroup: 2,
		confidence: pricedMentionConfidence,
	},
	{
		name:       "capitalized_phrase",
		pattern:    regexp.MustCompile(`(\p{Lu}[\p{L}'’-]+(?:[ \t]+\p{Lu}[\p{L}'’-]+)+)`),
		nameGroup:  1,
		confidence: barePhraseConfidence,
	},
}

// Sentence openers that get captured with a capitalised item name ("Try Butter Chicken").
var leadingFillers = map[string]struct{}{
	"a": {}, "add": {}, "also": {}, "an": {}, "and": {}, "check": {}, "enjoy": {}, "get": {},
	"grab": {}, "have": {}, "how": {}, "i": {}, "maybe": {}, "or": {}, "order": {}, "our": {},
	"perhaps": {}, "plus": {}, "recommend": {}, "savor": {}, "taste": {}, "the": {}, "today": {},
	"try": {}, "we": {}, "why": {}, "you": {}, "your": {},
}

const mentionTrimCutset = " \t.,;:!?-–—'\"’“”"

// MentionExtractor finds candidate item mentions in generated text.
type MentionExtractor interface {
	Extract(message string) []domain.ExtractedMention
}

// PatternExtractor applies the ordered price-anchored rules and the bare-phrase fallback.
type PatternExtractor struct {
	minLength int
}

func NewPatternExtractor(minLength int) *PatternExtractor {
	if minLength <= 0 {
		minLength = DefaultMinMentionLength
	}
	return &PatternExtractor{minLength: minLength}
}

// Extract returns the mentions in rule priority order, deduplicated case-insensitively by name.
func (e *PatternExtractor) Extract(message string) []domain.ExtractedMention {
	if strings.TrimSpace(message) == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var mentions []domain.ExtractedMention
	for _, rule := range mentionRules {
		for _, groups := range rule.pattern.FindAllStringSubmatch(message, -1) {
			name := normalizeMentionName(groups[rule.nameGroup])
			if len([]rune(name)) < e.minLength {
				continue
			}
			key := textutil.Fold(name)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			mention := domain.ExtractedMention{Name: name, Confidence: rule.confidence}
			if rule.priceGroup > 0 {
				mention.Price = parseMentionPrice(groups[rule.priceGroup])
			}
			mentions = append(mentions, mention)
		}
	}
	return mentions
}

func normalizeMentionName(raw string) string {
	name := textutil.CollapseSpaces(textutil.StripParentheticals(raw))
	name = strings.Trim(name, mentionTrimCutset)

	words := strings.Fields(name)
	for len(words) > 0 {
		if _, filler := leadingFillers[strings.ToLower(words[0])]; !filler {
			break
		}
		words = words[1:]
	}
	return strings.Trim(strings.Join(words, " "), mentionTrimCutset)
}

func parseMentionPrice(raw string) *float64 {
	value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil || value <= 0 {
		return nil
	}
	return &value
}

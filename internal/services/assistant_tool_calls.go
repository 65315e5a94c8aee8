package services

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/techbantu/GharSe-sub003/internal/domain"
)

// DefaultPopularLimit caps the items taken from a single popularity-ranking call.
const DefaultPopularLimit = 5

// SkippedToolCall records a recognised tool call whose payload contributed no evidence.
type SkippedToolCall struct {
	Name   string
	Reason string
}

// toolEvidence is the typed view of one turn's tool calls. Unknown tools are ignored.
type toolEvidence struct {
	catalogItems      []domain.CatalogItem
	popularItems      []domain.CatalogItem
	urgency           map[string]domain.Urgency
	cartMutated       bool
	checkoutTriggered bool
	skipped           []SkippedToolCall
}

type catalogToolPayload struct {
	Success *bool             `json:"success"`
	Items   []catalogToolItem `json:"items"`
}

type catalogToolItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	IsAvailable *bool   `json:"isAvailable"`
}

type urgencyToolPayload struct {
	Success *bool             `json:"success"`
	Items   []urgencyToolItem `json:"items"`
}

type urgencyToolItem struct {
	ID      string  `json:"id"`
	ItemID  string  `json:"itemId"`
	Level   string  `json:"level"`
	Message string  `json:"message"`
	Score   float64 `json:"score"`
}

type signalToolPayload struct {
	Success *bool `json:"success"`
}

// canonicalToolName folds case and treats '_' and '-' as the same separator.
func canonicalToolName(name string) domain.ToolName {
	normalized := strings.ToLower(strings.TrimSpace(name))
	return domain.ToolName(strings.ReplaceAll(normalized, "_", "-"))
}

func parseToolEvidence(calls []domain.ToolCallResult, popularLimit int) toolEvidence {
	if popularLimit <= 0 {
		popularLimit = DefaultPopularLimit
	}
	evidence := toolEvidence{}
	for _, call := range calls {
		tool := canonicalToolName(call.Name)
		switch tool {
		case domain.ToolCatalogSearch, domain.ToolPopularityRanking:
			items, reason := parseCatalogItems(call.Payload)
			if reason != "" {
				evidence.skip(call.Name, reason)
				continue
			}
			if tool == domain.ToolCatalogSearch {
				evidence.catalogItems = append(evidence.catalogItems, items...)
				continue
			}
			if len(items) > popularLimit {
				items = items[:popularLimit]
			}
			evidence.popularItems = append(evidence.popularItems, items...)
		case domain.ToolUrgencyLookup:
			urgency, reason := parseUrgency(call.Payload)
			if reason != "" {
				evidence.skip(call.Name, reason)
				continue
			}
			if evidence.urgency == nil {
				evidence.urgency = make(map[string]domain.Urgency, len(urgency))
			}
			for id, value := range urgency {
				evidence.urgency[id] = value
			}
		case domain.ToolCartMutation, domain.ToolCheckoutTrigger:
			if reason := parseSignal(call.Payload); reason != "" {
				evidence.skip(call.Name, reason)
				continue
			}
			if tool == domain.ToolCartMutation {
				evidence.cartMutated = true
			} else {
				evidence.checkoutTriggered = true
			}
		}
	}
	return evidence
}

func (e *toolEvidence) skip(name, reason string) {
	e.skipped = append(e.skipped, SkippedToolCall{Name: name, Reason: reason})
}

func isBlankPayload(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func parseCatalogItems(payload json.RawMessage) ([]domain.CatalogItem, string) {
	if isBlankPayload(payload) {
		return nil, "empty payload"
	}
	var decoded catalogToolPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, "malformed payload"
	}
	if decoded.Success != nil && !*decoded.Success {
		return nil, "unsuccessful call"
	}
	items := make([]domain.CatalogItem, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		id := strings.TrimSpace(item.ID)
		name := strings.TrimSpace(item.Name)
		if id == "" || name == "" {
			continue
		}
		if item.IsAvailable != nil && !*item.IsAvailable {
			continue
		}
		items = append(items, domain.CatalogItem{
			ID:          id,
			Name:        name,
			Price:       item.Price,
			Category:    strings.TrimSpace(item.Category),
			IsAvailable: true,
		})
	}
	return items, ""
}

func parseUrgency(payload json.RawMessage) (map[string]domain.Urgency, string) {
	if isBlankPayload(payload) {
		return nil, "empty payload"
	}
	var entries []urgencyToolItem
	trimmed := bytes.TrimSpace(payload)
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, "malformed payload"
		}
	} else {
		var decoded urgencyToolPayload
		if err := json.Unmarshal(trimmed, &decoded); err != nil {
			return nil, "malformed payload"
		}
		if decoded.Success != nil && !*decoded.Success {
			return nil, "unsuccessful call"
		}
		entries = decoded.Items
	}

	urgency := make(map[string]domain.Urgency, len(entries))
	for _, entry := range entries {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			id = strings.TrimSpace(entry.ItemID)
		}
		if id == "" {
			continue
		}
		urgency[id] = domain.Urgency{
			Level:   strings.TrimSpace(entry.Level),
			Message: strings.TrimSpace(entry.Message),
			Score:   entry.Score,
		}
	}
	return urgency, ""
}

// parseSignal accepts an empty payload as a bare signal; an object must not report failure.
func parseSignal(payload json.RawMessage) string {
	if isBlankPayload(payload) {
		return ""
	}
	var decoded signalToolPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "malformed payload"
	}
	if decoded.Success != nil && !*decoded.Success {
		return "unsuccessful call"
	}
	return ""
}

package domain

import (
	"encoding/json"
	"time"
)

// CatalogItem is a point-in-time menu row supplied by the catalog collaborator.
type CatalogItem struct {
	ID          string
	Name        string
	Price       float64
	Category    string
	IsAvailable bool
}

// CartLine is a single entry of the customer's current cart.
type CartLine struct {
	ItemID   string
	Quantity int
}

// CartSnapshot captures the cart contents read for one conversational turn.
type CartSnapshot struct {
	Items []CartLine
}

// IsEmpty reports whether the cart holds no lines.
func (c CartSnapshot) IsEmpty() bool {
	return len(c.Items) == 0
}

// Contains reports whether the cart holds a line for the given item id.
func (c CartSnapshot) Contains(itemID string) bool {
	for _, line := range c.Items {
		if line.ItemID == itemID {
			return true
		}
	}
	return false
}

// ExtractedMention is a candidate item name found in generated text, not yet verified against the catalog.
type ExtractedMention struct {
	Name       string
	Price      *float64
	Confidence float64
}

// MatchedItem ties a mention to a catalog row with a similarity confidence.
type MatchedItem struct {
	ID         string
	Name       string
	Price      float64
	Category   string
	Confidence float64
}

// ToolName identifies the agent tool that produced a ToolCallResult.
type ToolName string

const (
	ToolCatalogSearch     ToolName = "catalog-search"
	ToolPopularityRanking ToolName = "popularity-ranking"
	ToolUrgencyLookup     ToolName = "urgency-lookup"
	ToolCartMutation      ToolName = "cart-mutation"
	ToolCheckoutTrigger   ToolName = "checkout-trigger"
)

// ToolCallResult is the raw record of one tool invocation made by the conversational agent.
// Payload is kept opaque until the tool name selects a shape for it.
type ToolCallResult struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Urgency is pass-through scarcity data attached by the urgency-lookup tool.
type Urgency struct {
	Level   string  `json:"level,omitempty"`
	Message string  `json:"message,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// EvidenceLayer names the evidence source that nominated resolved items.
type EvidenceLayer string

const (
	EvidenceNone       EvidenceLayer = "none"
	EvidenceToolCalls  EvidenceLayer = "tool_calls"
	EvidenceExtraction EvidenceLayer = "extraction"
)

// ResolvedItem is a catalog row the turn resolved to, keyed by id and carrying the maximum confidence observed.
type ResolvedItem struct {
	ID         string
	Name       string
	Price      float64
	Category   string
	Confidence float64
	Layer      EvidenceLayer
	Urgency    *Urgency
}

// ActionType discriminates the Action variants.
type ActionType string

const (
	ActionAddToCart    ActionType = "add_to_cart"
	ActionAddAllToCart ActionType = "add_all_to_cart"
	ActionCheckout     ActionType = "checkout"
	ActionViewMenu     ActionType = "view_menu"
)

// ActionItem is the item snapshot carried by add actions.
type ActionItem struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Category string   `json:"category,omitempty"`
	Urgency  *Urgency `json:"urgency,omitempty"`
}

// Action is a presentable purchase suggestion. Only the fields of its Type are populated.
type Action struct {
	Type       ActionType   `json:"type"`
	Label      string       `json:"label,omitempty"`
	ItemID     string       `json:"itemId,omitempty"`
	ItemName   string       `json:"itemName,omitempty"`
	Price      float64      `json:"price,omitempty"`
	Quantity   int          `json:"quantity,omitempty"`
	Item       *ActionItem  `json:"item,omitempty"`
	Items      []ActionItem `json:"items,omitempty"`
	TotalPrice float64      `json:"totalPrice,omitempty"`
	ItemCount  int          `json:"itemCount,omitempty"`
	Urgency    *Urgency     `json:"urgency,omitempty"`
}

// AssistantTurnEvent summarises one resolved conversational turn for downstream consumers.
type AssistantTurnEvent struct {
	TurnID       string    `json:"turnId"`
	UserID       string    `json:"userId,omitempty"`
	Layer        string    `json:"layer"`
	ResolvedIDs  []string  `json:"resolvedIds,omitempty"`
	MentionedIDs []string  `json:"mentionedIds,omitempty"`
	ActionTypes  []string  `json:"actionTypes,omitempty"`
	Degraded     bool      `json:"degraded"`
	OccurredAt   time.Time `json:"occurredAt"`
}

package services

import (
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/techbantu/GharSe-sub003/internal/domain"
)

var browseKeywords = []string{"popular", "menu", "browse"}

// SynthesisInput carries everything the action rules look at for one turn.
type SynthesisInput struct {
	Items     []domain.ResolvedItem
	Cart      domain.CartSnapshot
	ToolCalls []domain.ToolCallResult
	Message   string
}

// ActionSynthesizer turns mentioned items and cart state into an ordered action list.
type ActionSynthesizer struct {
	lang language.Tag
}

func NewActionSynthesizer() *ActionSynthesizer {
	return &ActionSynthesizer{lang: language.English}
}

// Synthesize applies the action rules in order: one add per item, a bulk add when useful,
// checkout when the cart is in play, explicit checkout first, and a menu fallback.
func (s *ActionSynthesizer) Synthesize(input SynthesisInput) []domain.Action {
	evidence := parseToolEvidence(input.ToolCalls, DefaultPopularLimit)
	printer := message.NewPrinter(s.lang)

	actions := make([]domain.Action, 0, len(input.Items)+2)
	bundle := make([]domain.ActionItem, 0, len(input.Items))
	needsBulk := false
	total := 0.0
	for _, item := range input.Items {
		snapshot := actionItemFromResolved(item)
		actions = append(actions, domain.Action{
			Type:     domain.ActionAddToCart,
			Label:    printer.Sprintf("Add %s · ₹%v", item.Name, formatPrice(item.Price)),
			ItemID:   item.ID,
			ItemName: item.Name,
			Price:    item.Price,
			Quantity: 1,
			Item:     &snapshot,
			Urgency:  copyUrgency(item.Urgency),
		})
		bundle = append(bundle, snapshot)
		total += item.Price
		if !input.Cart.Contains(item.ID) {
			needsBulk = true
		}
	}

	if len(bundle) >= 2 && needsBulk {
		total = math.Round(total*100) / 100
		actions = append(actions, domain.Action{
			Type:       domain.ActionAddAllToCart,
			Label:      printer.Sprintf("Add all %d items · ₹%v", len(bundle), formatPrice(total)),
			Items:      bundle,
			TotalPrice: total,
			ItemCount:  len(bundle),
		})
	}

	if evidence.cartMutated || !input.Cart.IsEmpty() {
		actions = append(actions, checkoutAction())
	}

	if evidence.checkoutTriggered {
		actions = moveCheckoutToFront(actions)
	}

	if len(actions) == 0 && containsAny(strings.ToLower(input.Message), browseKeywords) {
		actions = append(actions, ViewMenuAction())
	}
	return actions
}

// ViewMenuAction is the fallback action offered when nothing more specific applies.
func ViewMenuAction() domain.Action {
	return domain.Action{Type: domain.ActionViewMenu, Label: "View menu"}
}

func checkoutAction() domain.Action {
	return domain.Action{Type: domain.ActionCheckout, Label: "Checkout"}
}

// moveCheckoutToFront leaves exactly one checkout action, at position 0.
func moveCheckoutToFront(actions []domain.Action) []domain.Action {
	reordered := make([]domain.Action, 0, len(actions)+1)
	reordered = append(reordered, checkoutAction())
	for _, action := range actions {
		if action.Type == domain.ActionCheckout {
			continue
		}
		reordered = append(reordered, action)
	}
	return reordered
}

func formatPrice(value float64) number.Formatter {
	return number.Decimal(value, number.MaxFractionDigits(2))
}

func actionItemFromResolved(item domain.ResolvedItem) domain.ActionItem {
	return domain.ActionItem{
		ID:       item.ID,
		Name:     item.Name,
		Price:    item.Price,
		Category: item.Category,
		Urgency:  copyUrgency(item.Urgency),
	}
}

func copyUrgency(urgency *domain.Urgency) *domain.Urgency {
	if urgency == nil {
		return nil
	}
	clone := *urgency
	return &clone
}

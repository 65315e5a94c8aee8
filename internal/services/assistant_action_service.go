package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/techbantu/GharSe-sub003/internal/domain"
	"github.com/techbantu/GharSe-sub003/internal/platform/textutil"
)

const (
	assistantTracerName   = "github.com/techbantu/GharSe-sub003/internal/services"
	assistantTurnIDPrefix = "turn_"

	// DefaultMaxMessageBytes bounds the agent reply accepted for one turn.
	DefaultMaxMessageBytes = 8192

	assistantEventToolCallSkipped = "assistant.tool_call.skipped"
	assistantEventCartFailed      = "assistant.cart_load.failed"
	assistantEventDegraded        = "assistant.resolve.degraded"
	assistantEventPanic           = "assistant.resolve.panic"
	assistantEventPublishFailed   = "assistant.turn_event.failed"
	assistantEventResolved        = "assistant.resolve.completed"
)

var (
	// ErrAssistantInvalidInput signals a request the engine refuses to process, such as an oversized message.
	ErrAssistantInvalidInput = errors.New("assistant: invalid input")
	// ErrAssistantUnavailable is returned when the service was constructed without its collaborators.
	ErrAssistantUnavailable = errors.New("assistant: service unavailable")
	// ErrCatalogUnavailable wraps catalog read failures on the text fallback path.
	ErrCatalogUnavailable = errors.New("assistant: catalog unavailable")
)

// CartReader loads the stored cart of a customer.
type CartReader interface {
	GetCart(ctx context.Context, userID string) (domain.CartSnapshot, error)
}

// TurnEventPublisher emits a summary event for each resolved turn.
type TurnEventPublisher interface {
	PublishAssistantTurn(ctx context.Context, event domain.AssistantTurnEvent) error
}

// TurnRecorder records per-turn metrics.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, layer domain.EvidenceLayer, degraded bool, actions int)
}

// AssistantActionService runs the resolution pipeline for one conversational turn and never fails
// the turn because of resolution problems: it degrades to the menu fallback instead.
type AssistantActionService struct {
	catalog         CatalogSource
	carts           CartReader
	reconciler      *EvidenceReconciler
	synthesizer     *ActionSynthesizer
	publisher       TurnEventPublisher
	metrics         TurnRecorder
	tracer          trace.Tracer
	renderMarkdown  bool
	maxMessageBytes int
	now             func() time.Time
	newID           func() string
	logger          func(context.Context, string, map[string]any)
}

type AssistantActionServiceDeps struct {
	Catalog         CatalogSource
	Carts           CartReader
	Extractor       MentionExtractor
	Publisher       TurnEventPublisher
	Metrics         TurnRecorder
	FuzzyThreshold  float64
	PopularLimit    int
	MinMentionLen   int
	RenderMarkdown  bool
	MaxMessageBytes int
	Clock           func() time.Time
	IDGenerator     func() string
	Logger          func(context.Context, string, map[string]any)
}

func NewAssistantActionService(deps AssistantActionServiceDeps) (*AssistantActionService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("assistant action service: catalog source is required")
	}
	extractor := deps.Extractor
	if extractor == nil {
		extractor = NewPatternExtractor(deps.MinMentionLen)
	}
	maxBytes := deps.MaxMessageBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMessageBytes
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return assistantTurnIDPrefix + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &AssistantActionService{
		catalog: deps.Catalog,
		carts:   deps.Carts,
		reconciler: NewEvidenceReconciler(EvidenceReconcilerDeps{
			Extractor:    extractor,
			Matcher:      NewCatalogMatcher(deps.FuzzyThreshold),
			PopularLimit: deps.PopularLimit,
		}),
		synthesizer:     NewActionSynthesizer(),
		publisher:       deps.Publisher,
		metrics:         deps.Metrics,
		tracer:          otel.Tracer(assistantTracerName),
		renderMarkdown:  deps.RenderMarkdown,
		maxMessageBytes: maxBytes,
		now: func() time.Time {
			return now().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

type ResolveActionsCommand struct {
	UserID    string
	Message   string
	ToolCalls []domain.ToolCallResult
	// Cart, when nil, is loaded from the cart reader for UserID.
	Cart *domain.CartSnapshot
}

type ResolveActionsResult struct {
	TurnID    string
	Actions   []domain.Action
	Layer     domain.EvidenceLayer
	Resolved  []domain.ResolvedItem
	Mentioned []domain.ResolvedItem
	Degraded  bool
}

// ResolveActions decides which catalog items the agent's reply is about and which actions to offer.
func (s *AssistantActionService) ResolveActions(ctx context.Context, cmd ResolveActionsCommand) (ResolveActionsResult, error) {
	if s == nil || s.reconciler == nil {
		return ResolveActionsResult{}, ErrAssistantUnavailable
	}
	if len(cmd.Message) > s.maxMessageBytes {
		return ResolveActionsResult{}, fmt.Errorf("%w: message exceeds %d bytes", ErrAssistantInvalidInput, s.maxMessageBytes)
	}

	ctx, span := s.tracer.Start(ctx, "assistant.resolve_actions")
	defer span.End()

	result := ResolveActionsResult{TurnID: s.newID(), Layer: domain.EvidenceNone}
	userID := strings.TrimSpace(cmd.UserID)
	text := cmd.Message
	if s.renderMarkdown {
		text = textutil.PlainText(text)
	}

	if err := s.resolve(ctx, cmd, userID, text, &result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "degraded")
		s.logger(ctx, assistantEventDegraded, map[string]any{
			"turnId": result.TurnID,
			"error":  err.Error(),
		})
		result = ResolveActionsResult{
			TurnID:   result.TurnID,
			Actions:  []domain.Action{ViewMenuAction()},
			Layer:    domain.EvidenceNone,
			Degraded: true,
		}
	}

	span.SetAttributes(
		attribute.String("assistant.turn_id", result.TurnID),
		attribute.String("assistant.layer", string(result.Layer)),
		attribute.Int("assistant.resolved", len(result.Resolved)),
		attribute.Int("assistant.mentioned", len(result.Mentioned)),
		attribute.Int("assistant.actions", len(result.Actions)),
		attribute.Bool("assistant.degraded", result.Degraded),
	)
	if s.metrics != nil {
		s.metrics.RecordTurn(ctx, result.Layer, result.Degraded, len(result.Actions))
	}
	s.logger(ctx, assistantEventResolved, map[string]any{
		"turnId":    result.TurnID,
		"layer":     string(result.Layer),
		"resolved":  len(result.Resolved),
		"mentioned": len(result.Mentioned),
		"actions":   len(result.Actions),
		"degraded":  result.Degraded,
	})
	s.publishTurn(ctx, userID, result)
	return result, nil
}

// resolve runs the pipeline; a panic anywhere inside is converted into an error.
func (s *AssistantActionService) resolve(ctx context.Context, cmd ResolveActionsCommand, userID, text string, result *ResolveActionsResult) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger(ctx, assistantEventPanic, map[string]any{
				"turnId": result.TurnID,
				"panic":  fmt.Sprint(recovered),
			})
			err = fmt.Errorf("assistant: recovered panic: %v", recovered)
		}
	}()

	reconciliation, err := s.reconciler.Reconcile(ctx, cmd.ToolCalls, text, s.catalog)
	if err != nil {
		return err
	}
	for _, skipped := range reconciliation.Skipped {
		s.logger(ctx, assistantEventToolCallSkipped, map[string]any{
			"turnId": result.TurnID,
			"tool":   skipped.Name,
			"reason": skipped.Reason,
		})
	}

	cart := s.loadCart(ctx, userID, cmd.Cart)
	result.Layer = reconciliation.Layer
	result.Resolved = reconciliation.Resolved
	result.Mentioned = reconciliation.Mentioned
	result.Actions = s.synthesizer.Synthesize(SynthesisInput{
		Items:     reconciliation.Mentioned,
		Cart:      cart,
		ToolCalls: cmd.ToolCalls,
		Message:   text,
	})
	return nil
}

func (s *AssistantActionService) loadCart(ctx context.Context, userID string, provided *domain.CartSnapshot) domain.CartSnapshot {
	if provided != nil {
		return *provided
	}
	if s.carts == nil || userID == "" {
		return domain.CartSnapshot{}
	}
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		if !isRepositoryNotFound(err) {
			s.logger(ctx, assistantEventCartFailed, map[string]any{
				"userId": userID,
				"error":  err.Error(),
			})
		}
		return domain.CartSnapshot{}
	}
	return cart
}

func (s *AssistantActionService) publishTurn(ctx context.Context, userID string, result ResolveActionsResult) {
	if s.publisher == nil {
		return
	}
	event := domain.AssistantTurnEvent{
		TurnID:       result.TurnID,
		UserID:       userID,
		Layer:        string(result.Layer),
		ResolvedIDs:  resolvedIDs(result.Resolved),
		MentionedIDs: resolvedIDs(result.Mentioned),
		Degraded:     result.Degraded,
		OccurredAt:   s.now(),
	}
	for _, action := range result.Actions {
		event.ActionTypes = append(event.ActionTypes, string(action.Type))
	}
	if err := s.publisher.PublishAssistantTurn(ctx, event); err != nil {
		s.logger(ctx, assistantEventPublishFailed, map[string]any{
			"turnId": result.TurnID,
			"error":  err.Error(),
		})
	}
}

func resolvedIDs(items []domain.ResolvedItem) []string {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

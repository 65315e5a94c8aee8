package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/techbantu/GharSe-sub003/internal/domain"
	"github.com/techbantu/GharSe-sub003/internal/platform/auth"
	"github.com/techbantu/GharSe-sub003/internal/platform/httpx"
	"github.com/techbantu/GharSe-sub003/internal/platform/observability"
	"github.com/techbantu/GharSe-sub003/internal/platform/requestctx"
	"github.com/techbantu/GharSe-sub003/internal/services"
)

const (
	maxAssistantBodySize = 256 * 1024
	rateLimitRetryAfter  = 60
)

// AssistantService resolves the purchase actions for one conversational turn.
type AssistantService interface {
	ResolveActions(ctx context.Context, cmd services.ResolveActionsCommand) (services.ResolveActionsResult, error)
}

// AssistantHandlers exposes the action resolution endpoint used by the chat front end.
type AssistantHandlers struct {
	service     AssistantService
	authn       *auth.Authenticator
	requireAuth bool
	limiter     RateLimiter
	validate    *validator.Validate
}

// AssistantOption customises AssistantHandlers.
type AssistantOption func(*AssistantHandlers)

// WithAssistantAuthenticator enables Firebase authentication. When required is false anonymous
// callers are served without cart lookups.
func WithAssistantAuthenticator(authn *auth.Authenticator, required bool) AssistantOption {
	return func(h *AssistantHandlers) {
		h.authn = authn
		h.requireAuth = required
	}
}

// WithAssistantRateLimiter throttles callers by uid, or by client IP when anonymous.
func WithAssistantRateLimiter(limiter RateLimiter) AssistantOption {
	return func(h *AssistantHandlers) { h.limiter = limiter }
}

func NewAssistantHandlers(service AssistantService, opts ...AssistantOption) *AssistantHandlers {
	h := &AssistantHandlers{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires POST /assistant/actions.
func (h *AssistantHandlers) Routes(r chi.Router) {
	r.Route("/assistant", func(group chi.Router) {
		if h.authn != nil {
			if h.requireAuth {
				group.Use(h.authn.RequireFirebaseAuth())
			} else {
				group.Use(h.authn.OptionalFirebaseAuth())
			}
		}
		group.Post("/actions", h.resolveActions)
	})
}

type resolveActionsRequest struct {
	Message   string            `json:"message" validate:"required_without=ToolCalls"`
	ToolCalls []toolCallRequest `json:"toolCalls" validate:"max=64,dive"`
	Cart      *cartRequest      `json:"cart"`
}

type toolCallRequest struct {
	Name    string          `json:"name" validate:"required,max=64"`
	Payload json.RawMessage `json:"payload"`
}

type cartRequest struct {
	Items []cartLineRequest `json:"items" validate:"max=200,dive"`
}

type cartLineRequest struct {
	ItemID   string `json:"itemId" validate:"required,max=128"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

type resolveActionsResponse struct {
	TurnID    string                 `json:"turnId"`
	Actions   []domain.Action        `json:"actions"`
	Layer     domain.EvidenceLayer   `json:"layer"`
	Resolved  []resolvedItemResponse `json:"resolved"`
	Mentioned []resolvedItemResponse `json:"mentioned"`
	Degraded  bool                   `json:"degraded"`
}

type resolvedItemResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      float64         `json:"price"`
	Category   string          `json:"category,omitempty"`
	Confidence float64         `json:"confidence"`
	Layer      string          `json:"layer"`
	Urgency    *domain.Urgency `json:"urgency,omitempty"`
}

func (h *AssistantHandlers) resolveActions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.service == nil {
		httpx.WriteError(ctx, w, httpx.NewError("assistant_unavailable", "assistant service is unavailable", http.StatusServiceUnavailable))
		return
	}

	userID := auth.UserID(ctx)
	if userID != "" {
		ctx = requestctx.WithLogger(ctx, requestctx.Logger(ctx).With(zap.String("user_id", observability.SanitizeUserID(userID))))
	}

	if !h.allow(ctx, rateLimitKey(r, userID)) {
		w.Header().Set("Retry-After", strconv.Itoa(rateLimitRetryAfter))
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many assistant requests", http.StatusTooManyRequests))
		return
	}

	var req resolveActionsRequest
	if err := httpx.DecodeJSON(r, maxAssistantBodySize, &req); err != nil {
		if errors.Is(err, httpx.ErrBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request failed validation", http.StatusBadRequest).
			WithDetails(map[string]any{"fields": validationFields(err)}))
		return
	}

	result, err := h.service.ResolveActions(ctx, req.command(userID))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAssistantInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		default:
			requestctx.Logger(ctx).Error("assistant: resolve actions failed", zap.Error(err))
			httpx.WriteError(ctx, w, httpx.NewError("assistant_unavailable", "assistant service is unavailable", http.StatusServiceUnavailable))
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, buildResolveActionsResponse(result))
}

func (h *AssistantHandlers) allow(ctx context.Context, key string) bool {
	if h.limiter == nil {
		return true
	}
	allowed, err := h.limiter.Allow(ctx, key)
	if err != nil {
		requestctx.Logger(ctx).Warn("assistant: rate limiter unavailable", zap.Error(err))
		return true
	}
	return allowed
}

func (req resolveActionsRequest) command(userID string) services.ResolveActionsCommand {
	cmd := services.ResolveActionsCommand{
		UserID:  userID,
		Message: req.Message,
	}
	for _, call := range req.ToolCalls {
		cmd.ToolCalls = append(cmd.ToolCalls, domain.ToolCallResult{
			Name:    strings.TrimSpace(call.Name),
			Payload: call.Payload,
		})
	}
	if req.Cart != nil {
		cart := domain.CartSnapshot{Items: make([]domain.CartLine, 0, len(req.Cart.Items))}
		for _, line := range req.Cart.Items {
			cart.Items = append(cart.Items, domain.CartLine{ItemID: line.ItemID, Quantity: line.Quantity})
		}
		cmd.Cart = &cart
	}
	return cmd
}

func buildResolveActionsResponse(result services.ResolveActionsResult) resolveActionsResponse {
	resp := resolveActionsResponse{
		TurnID:    result.TurnID,
		Actions:   result.Actions,
		Layer:     result.Layer,
		Resolved:  make([]resolvedItemResponse, 0, len(result.Resolved)),
		Mentioned: make([]resolvedItemResponse, 0, len(result.Mentioned)),
		Degraded:  result.Degraded,
	}
	if resp.Actions == nil {
		resp.Actions = []domain.Action{}
	}
	for _, item := range result.Resolved {
		resp.Resolved = append(resp.Resolved, resolvedItemPayload(item))
	}
	for _, item := range result.Mentioned {
		resp.Mentioned = append(resp.Mentioned, resolvedItemPayload(item))
	}
	return resp
}

func resolvedItemPayload(item domain.ResolvedItem) resolvedItemResponse {
	return resolvedItemResponse{
		ID:         item.ID,
		Name:       item.Name,
		Price:      item.Price,
		Category:   item.Category,
		Confidence: item.Confidence,
		Layer:      string(item.Layer),
		Urgency:    item.Urgency,
	}
}

func validationFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace()+":"+fe.Tag())
	}
	return fields
}

func rateLimitKey(r *http.Request, userID string) string {
	if userID != "" {
		return "uid:" + userID
	}
	host := strings.TrimSpace(r.RemoteAddr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return "ip:" + host
}

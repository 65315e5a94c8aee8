package services

import (
	"context"
	"encoding/json"

	"github.com/techbantu/GharSe-sub003/internal/domain"
)

func toolCall(name, payload string) domain.ToolCallResult {
	return domain.ToolCallResult{Name: name, Payload: json.RawMessage(payload)}
}

type stubCatalogSource struct {
	items []domain.CatalogItem
	err   error
	calls int
}

func (s *stubCatalogSource) ListAvailableItems(context.Context) ([]domain.CatalogItem, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.items, nil
}

type spyExtractor struct {
	delegate MentionExtractor
	calls    int
	panicMsg string
}

func (s *spyExtractor) Extract(message string) []domain.ExtractedMention {
	s.calls++
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.delegate == nil {
		return nil
	}
	return s.delegate.Extract(message)
}

type stubCartReader struct {
	cart  domain.CartSnapshot
	err   error
	calls []string
}

func (s *stubCartReader) GetCart(_ context.Context, userID string) (domain.CartSnapshot, error) {
	s.calls = append(s.calls, userID)
	return s.cart, s.err
}

type stubTurnPublisher struct {
	events []domain.AssistantTurnEvent
	err    error
}

func (s *stubTurnPublisher) PublishAssistantTurn(_ context.Context, event domain.AssistantTurnEvent) error {
	s.events = append(s.events, event)
	return s.err
}

type stubTurnRecorder struct {
	layers   []domain.EvidenceLayer
	degraded []bool
	actions  []int
}

func (s *stubTurnRecorder) RecordTurn(_ context.Context, layer domain.EvidenceLayer, degraded bool, actions int) {
	s.layers = append(s.layers, layer)
	s.degraded = append(s.degraded, degraded)
	s.actions = append(s.actions, actions)
}

type stubRepoError struct {
	notFound bool
}

func (e stubRepoError) Error() string       { return "repository error" }
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return false }
func (e stubRepoError) IsUnavailable() bool { return !e.notFound }

type loggedEvent struct {
	event  string
	fields map[string]any
}

type eventLog struct {
	entries []loggedEvent
}

func (l *eventLog) log(_ context.Context, event string, fields map[string]any) {
	l.entries = append(l.entries, loggedEvent{event: event, fields: fields})
}

func (l *eventLog) has(event string) bool {
	for _, entry := range l.entries {
		if entry.event == event {
			return true
		}
	}
	return false
}

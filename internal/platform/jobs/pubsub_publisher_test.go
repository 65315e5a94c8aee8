package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/techbantu/GharSe-sub003/internal/domain"
)

func TestPubSubTurnPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "assistant-turns")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubTurnPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubTurnPublisher: %v", err)
	}
	defer publisher.Stop()

	event := domain.AssistantTurnEvent{
		TurnID:      "turn_01J9Z",
		UserID:      "uid-42",
		Layer:       string(domain.EvidenceToolCalls),
		ResolvedIDs: []string{"y9", "a1"},
		ActionTypes: []string{"add_to_cart", "add_to_cart", "add_all_to_cart", "checkout"},
		OccurredAt:  time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC),
	}
	if err := publisher.PublishAssistantTurn(ctx, event); err != nil {
		t.Fatalf("PublishAssistantTurn: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload domain.AssistantTurnEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.TurnID != event.TurnID || len(payload.ResolvedIDs) != 2 {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if !payload.OccurredAt.Equal(event.OccurredAt) {
		t.Fatalf("unexpected occurredAt %s", payload.OccurredAt)
	}
	attrs := messages[0].Attributes
	if attrs["layer"] != "tool_calls" || attrs["degraded"] != "false" || attrs["userId"] != "uid-42" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
}

func TestPubSubTurnPublisherOmitsBlankAttributes(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "assistant-turns")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	publisher, err := NewPubSubTurnPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubTurnPublisher: %v", err)
	}
	defer publisher.Stop()

	event := domain.AssistantTurnEvent{TurnID: "turn_02", Layer: string(domain.EvidenceNone), Degraded: true}
	if err := publisher.PublishAssistantTurn(ctx, event); err != nil {
		t.Fatalf("PublishAssistantTurn: %v", err)
	}

	attrs := srv.Messages()[0].Attributes
	if _, ok := attrs["userId"]; ok {
		t.Fatalf("blank userId should not be set: %v", attrs)
	}
	if attrs["degraded"] != "true" {
		t.Fatalf("expected degraded attribute, got %v", attrs)
	}
}

func TestNewPubSubTurnPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubTurnPublisher(nil); err == nil {
		t.Fatalf("expected error for nil topic")
	}
}

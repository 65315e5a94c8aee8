package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/techbantu/GharSe-sub003/internal/domain"
)

// PubSubTurnPublisher publishes assistant turn summaries to a Pub/Sub topic.
type PubSubTurnPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubTurnPublisher constructs a Pub/Sub backed turn event publisher.
func NewPubSubTurnPublisher(topic *pubsub.Topic) (*PubSubTurnPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub turn publisher: topic is required")
	}
	return &PubSubTurnPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishAssistantTurn sends the event and waits for the server acknowledgement.
func (p *PubSubTurnPublisher) PublishAssistantTurn(ctx context.Context, event domain.AssistantTurnEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub turn publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal turn event: %w", err)
	}

	attrs := map[string]string{
		"degraded": strconv.FormatBool(event.Degraded),
	}
	setAttr(attrs, "turnId", event.TurnID)
	setAttr(attrs, "userId", event.UserID)
	setAttr(attrs, "layer", event.Layer)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish turn event: %w", err)
	}
	return nil
}

// Stop flushes pending messages and releases the topic's goroutines.
func (p *PubSubTurnPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

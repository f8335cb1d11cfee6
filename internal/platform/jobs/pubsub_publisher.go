package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/friperie/api/internal/services"
)

// PubSubPublisher emits marketplace events to a Pub/Sub topic. It serves both as the order event
// sink and as the pubsub broadcast driver for new messages.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubPublisher wraps topic.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub publisher: topic is required")
	}
	return &PubSubPublisher{topic: topic, marshal: json.Marshal}, nil
}

// PublishOrderEvent publishes an order status change.
func (p *PubSubPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	attrs := make(map[string]string)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "productId", event.ProductID)
	setAttr(attrs, "status", event.CurrentStatus)
	_, err := p.publish(ctx, event, attrs)
	return err
}

// Broadcast publishes a new message event for push and websocket relays.
func (p *PubSubPublisher) Broadcast(ctx context.Context, event services.MessageEvent) error {
	attrs := make(map[string]string)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "conversationId", event.ConversationID)
	setAttr(attrs, "recipients", strings.Join(event.Recipients, ","))
	_, err := p.publish(ctx, event, attrs)
	return err
}

func (p *PubSubPublisher) publish(ctx context.Context, payload any, attrs map[string]string) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub publisher: not initialised")
	}
	data, err := p.marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	id, err := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", attrs["eventType"], err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

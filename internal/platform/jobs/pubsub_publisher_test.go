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

	"github.com/friperie/api/internal/services"
)

func newTestTopic(t *testing.T) (*pstest.Server, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "marketplace-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	t.Cleanup(topic.Stop)
	return srv, topic
}

func TestPubSubPublisherPublishesOrderEvent(t *testing.T) {
	srv, topic := newTestTopic(t)
	publisher, err := NewPubSubPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}

	event := services.OrderEvent{
		Type:           "order.confirmed",
		OrderID:        "ord_1",
		ProductID:      "prd_1",
		PreviousStatus: "PENDING",
		CurrentStatus:  "CONFIRMED",
		ActorID:        "seller",
		OccurredAt:     time.Date(2026, 5, 6, 9, 0, 0, 0, time.UTC),
	}
	if err := publisher.PublishOrderEvent(context.Background(), event); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	var payload services.OrderEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != event.OrderID || payload.PreviousStatus != "PENDING" || !payload.OccurredAt.Equal(event.OccurredAt) {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if got := messages[0].Attributes["status"]; got != "CONFIRMED" {
		t.Fatalf("expected status attribute, got %q", got)
	}
	if got := messages[0].Attributes["eventType"]; got != "order.confirmed" {
		t.Fatalf("expected event type attribute, got %q", got)
	}
}

func TestPubSubPublisherBroadcastsMessage(t *testing.T) {
	srv, topic := newTestTopic(t)
	publisher, _ := NewPubSubPublisher(topic)

	err := publisher.Broadcast(context.Background(), services.MessageEvent{
		Type:           "new_message",
		ConversationID: "cnv_1",
		MessageID:      "msg_1",
		Recipients:     []string{"buyer", "seller"},
	})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if got := messages[0].Attributes["recipients"]; got != "buyer,seller" {
		t.Fatalf("unexpected recipients attribute %q", got)
	}
	if _, ok := messages[0].Attributes["orderId"]; ok {
		t.Fatalf("order attributes must not leak into message events")
	}
}

func TestNewPubSubPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubPublisher(nil); err == nil {
		t.Fatal("expected error for nil topic")
	}
}

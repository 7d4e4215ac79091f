package notifications

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/customiseme/storefront-api/internal/domain"
)

func newTestTopic(t *testing.T) *pubsub.Topic {
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

	topic, err := client.CreateTopic(ctx, "order-notifications")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	return topic
}

func TestPubSubPublisherPublishesMessage(t *testing.T) {
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

	topic, err := client.CreateTopic(ctx, "order-notifications")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}

	order := domain.Order{
		ID:     "ORD_042_7KQ2M",
		Email:  "buyer@example.com",
		Status: domain.OrderStatusPaid,
		Total:  4099,
	}
	msg := Message{
		Kind:      KindOrderConfirmation,
		Recipient: order.Email,
		OrderID:   order.ID,
		Order:     &order,
	}

	if _, err := publisher.Publish(ctx, msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload Message
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Kind != KindOrderConfirmation || payload.OrderID != order.ID {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if payload.Order == nil || payload.Order.Total != 4099 {
		t.Fatalf("order snapshot missing from payload: %#v", payload.Order)
	}
	if attr := messages[0].Attributes["kind"]; attr != string(KindOrderConfirmation) {
		t.Fatalf("expected kind attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["orderId"]; attr != order.ID {
		t.Fatalf("expected orderId attribute, got %q", attr)
	}
}

func TestPubSubPublisherRequiresKind(t *testing.T) {
	topic := newTestTopic(t)

	publisher, err := NewPubSubPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}

	if _, err := publisher.Publish(context.Background(), Message{OrderID: "ORD_001_AAAAA"}); err == nil {
		t.Fatal("expected error for missing kind")
	}
}

func TestNewPubSubPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubPublisher(nil); err == nil {
		t.Fatal("expected error for nil topic")
	}
}

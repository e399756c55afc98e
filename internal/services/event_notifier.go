package services

import (
	"context"

	"github.com/example/pharmadrop/internal/events"
)

// EventPublisher is satisfied by *events.Publisher.
type EventPublisher interface {
	Enabled() bool
	Publish(ctx context.Context, event events.Event) error
}

// EventNotifier streams order events to the message bus.
type EventNotifier struct {
	publisher EventPublisher
}

func NewEventNotifier(publisher EventPublisher) *EventNotifier {
	return &EventNotifier{publisher: publisher}
}

func (n *EventNotifier) Enabled() bool {
	return n.publisher != nil && n.publisher.Enabled()
}

func (n *EventNotifier) NotifyOrderPlaced(ctx context.Context, msg OrderConfirmation) error {
	items := make([]map[string]any, 0, len(msg.Items))
	for _, item := range msg.Items {
		items = append(items, map[string]any{
			"name":     item.Name,
			"quantity": item.Quantity,
			"price":    item.Price,
		})
	}
	return n.publisher.Publish(ctx, events.NewEvent(events.EventOrderCreated, msg.OrderID, map[string]any{
		"pharmacy":     msg.PharmacyName,
		"items":        items,
		"subtotal":     msg.Subtotal,
		"discount":     msg.Discount,
		"total_amount": msg.TotalAmount,
		"coupon_code":  msg.CouponCode,
	}))
}

func (n *EventNotifier) NotifyStatusChanged(ctx context.Context, change StatusChange) error {
	return n.publisher.Publish(ctx, events.NewEvent(events.EventOrderStatusChanged, change.OrderID, map[string]any{
		"customer_id": change.CustomerID.String(),
		"pharmacy_id": change.PharmacyID.String(),
		"from":        string(change.From),
		"to":          string(change.To),
		"actor_id":    change.ActorID.String(),
		"actor_role":  change.ActorRole,
	}))
}

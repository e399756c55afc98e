package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/pharmadrop/internal/models"
)

// OrderConfirmation is what a customer is told after an order commits.
type OrderConfirmation struct {
	OrderID       uuid.UUID
	CustomerName  string
	CustomerPhone string
	PharmacyName  string
	Items         []ConfirmationItem
	Subtotal      float64
	Discount      float64
	TotalAmount   float64
	CouponCode    string
	PlacedAt      time.Time
}

// ConfirmationItem is one line of an OrderConfirmation.
type ConfirmationItem struct {
	Name     string
	Quantity int
	Price    float64
}

// StatusChange describes a committed lifecycle transition.
type StatusChange struct {
	OrderID    uuid.UUID
	CustomerID uuid.UUID
	PharmacyID uuid.UUID
	From       models.OrderStatus
	To         models.OrderStatus
	ActorID    uuid.UUID
	ActorRole  string
	ChangedAt  time.Time
}

// Notifier delivers best-effort order notifications.
type Notifier interface {
	NotifyOrderPlaced(ctx context.Context, msg OrderConfirmation) error
	NotifyStatusChanged(ctx context.Context, change StatusChange) error
}

// Toggle is implemented by notifiers that can be switched off by config.
type Toggle interface {
	Enabled() bool
}

// MultiNotifier fans a notification out to every enabled notifier.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier drops nil and disabled notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		if t, ok := n.(Toggle); ok && !t.Enabled() {
			continue
		}
		m.notifiers = append(m.notifiers, n)
	}
	return m
}

// Len returns the number of active notifiers.
func (m *MultiNotifier) Len() int {
	return len(m.notifiers)
}

func (m *MultiNotifier) NotifyOrderPlaced(ctx context.Context, msg OrderConfirmation) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.NotifyOrderPlaced(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiNotifier) NotifyStatusChanged(ctx context.Context, change StatusChange) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.NotifyStatusChanged(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewOrderConfirmation builds the confirmation payload of a committed order.
func NewOrderConfirmation(order *models.Order, customer *models.User, pharmacy *models.Pharmacy) OrderConfirmation {
	msg := OrderConfirmation{
		OrderID:     order.ID,
		Subtotal:    order.Subtotal,
		Discount:    order.Discount,
		TotalAmount: order.TotalAmount,
		CouponCode:  order.CouponCode,
		PlacedAt:    order.CreatedAt,
	}
	if customer != nil {
		msg.CustomerName = customer.Name
		msg.CustomerPhone = customer.Phone
	}
	if pharmacy != nil {
		msg.PharmacyName = pharmacy.Name
	}
	for _, item := range order.Items {
		msg.Items = append(msg.Items, ConfirmationItem{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}
	return msg
}

// Summary renders the customer-facing confirmation text.
func (c OrderConfirmation) Summary() string {
	lines := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, fmt.Sprintf("%s x%d", item.Name, item.Quantity))
	}
	return fmt.Sprintf("Your order from %s is confirmed: %s. Total: $%.2f",
		c.PharmacyName, strings.Join(lines, ", "), c.TotalAmount)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/pharmadrop/internal/models"
	"github.com/example/pharmadrop/internal/repository"
)

// StatusUpdate is a partial update of the order envelope. Empty fields are
// left unchanged.
type StatusUpdate struct {
	Status           models.OrderStatus `json:"status"`
	DeliveryPersonID string             `json:"deliveryPersonId"`
}

// courier returns the requested delivery person. ok is false when the field
// is empty or the nil UUID.
func (u StatusUpdate) courier() (id uuid.UUID, ok bool, err error) {
	raw := strings.TrimSpace(u.DeliveryPersonID)
	if raw == "" {
		return uuid.Nil, false, nil
	}
	id, err = uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, newOrderError(ErrorInvalidDeliveryPerson, "Invalid delivery person ID or user is not a delivery person")
	}
	return id, id != uuid.Nil, nil
}

// InstructionInput is one preparation note as submitted by the pharmacy.
type InstructionInput struct {
	Text     string `json:"text"`
	Icon     string `json:"icon"`
	Priority string `json:"priority"`
}

// UpdateStatus moves the order along its lifecycle and/or reassigns the
// courier. Callers must be the pharmacy owner, the assigned courier or an
// admin.
func (s *OrderService) UpdateStatus(ctx context.Context, actor Principal, orderID uuid.UUID, update StatusUpdate) (*models.Order, error) {
	var (
		order  *models.Order
		change *StatusChange
	)
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.store.LockOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "Order not found")
		}
		access, err := s.accessOf(ctx, order)
		if err != nil {
			return err
		}
		if !Authorize(actor, access, ActionUpdateStatus) {
			return newOrderError(ErrorUnauthorized, "Not authorized to update this order status")
		}

		dirty := false
		if update.Status != "" && update.Status != order.Status {
			if !update.Status.Valid() {
				return newOrderError(ErrorValidation, "Invalid status %q", update.Status)
			}
			if !canTransition(ResolveCapacity(actor, access), order.Status, update.Status) {
				return newOrderError(ErrorInvalidTransition, "Cannot move order from %s to %s", order.Status, update.Status)
			}
			change = &StatusChange{
				OrderID:    order.ID,
				CustomerID: order.CustomerID,
				PharmacyID: order.PharmacyID,
				From:       order.Status,
				To:         update.Status,
				ActorID:    actor.UserID,
				ActorRole:  actor.Role,
			}
			order.Status = update.Status
			dirty = true
		}
		courierID, reassign, err := update.courier()
		if err != nil {
			return err
		}
		if reassign {
			if err := s.requireCourier(ctx, courierID); err != nil {
				return err
			}
			order.DeliveryPersonID = &courierID
			dirty = true
		}
		if !dirty {
			return nil
		}

		if err := s.store.SaveOrderState(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		if change != nil {
			entry := &models.OrderStatusHistory{
				OrderID:    order.ID,
				FromStatus: change.From,
				ToStatus:   change.To,
				ActorID:    actor.UserID,
				ActorRole:  actor.Role,
			}
			if err := s.store.AppendStatusHistory(ctx, entry); err != nil {
				return fmt.Errorf("append status history: %w", err)
			}
			order.StatusHistory = append(order.StatusHistory, *entry)
			change.ChangedAt = entry.CreatedAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if change != nil {
		s.statusChanged(*change)
	}
	return order, nil
}

// AssignDeliveryPerson hands the order to a courier without touching its
// status.
func (s *OrderService) AssignDeliveryPerson(ctx context.Context, actor Principal, orderID, deliveryPersonID uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.store.LockOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "Order not found")
		}
		if err := s.requireCourier(ctx, deliveryPersonID); err != nil {
			return err
		}
		access, err := s.accessOf(ctx, order)
		if err != nil {
			return err
		}
		if !Authorize(actor, access, ActionAssignDelivery) {
			return newOrderError(ErrorUnauthorized, "Not authorized to assign delivery person for this order")
		}

		id := deliveryPersonID
		order.DeliveryPersonID = &id
		if err := s.store.SaveOrderState(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Lifecycle] Order %s assigned to courier %s by %s", order.ID, deliveryPersonID, actor.UserID)
	return order, nil
}

// SetInstructions replaces the preparation notes of an order that is still
// packing.
func (s *OrderService) SetInstructions(ctx context.Context, actor Principal, orderID uuid.UUID, inputs []InstructionInput) (*models.Order, error) {
	var order *models.Order
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.store.LockOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "Order not found")
		}
		if order.Status != models.OrderStatusPacking {
			return newOrderError(ErrorInvalidState, "Instructions can only be changed while the order is packing")
		}
		access, err := s.accessOf(ctx, order)
		if err != nil {
			return err
		}
		if !Authorize(actor, access, ActionSetInstructions) {
			return newOrderError(ErrorUnauthorized, "Not authorized to set instructions for this order")
		}

		instructions, err := buildInstructions(inputs, time.Now())
		if err != nil {
			return err
		}
		if err := s.store.ReplaceInstructions(ctx, order.ID, instructions); err != nil {
			return fmt.Errorf("replace instructions: %w", err)
		}
		order.Instructions = instructions
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func buildInstructions(inputs []InstructionInput, now time.Time) ([]models.OrderInstruction, error) {
	instructions := make([]models.OrderInstruction, 0, len(inputs))
	for i, in := range inputs {
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return nil, newOrderError(ErrorValidation, "Instruction %d: text is required", i+1)
		}
		priority := strings.ToLower(strings.TrimSpace(in.Priority))
		if priority == "" {
			priority = models.PriorityMedium
		}
		if !models.ValidPriority(priority) {
			return nil, newOrderError(ErrorValidation, "Instruction %d: priority must be low, medium or high", i+1)
		}
		icon := strings.TrimSpace(in.Icon)
		if icon == "" {
			icon = models.DefaultInstructionIcon
		}

		instruction := models.OrderInstruction{
			Position: i,
			Text:     text,
			Icon:     icon,
			Priority: priority,
		}
		instruction.CreatedAt = now
		instruction.UpdatedAt = now
		instructions = append(instructions, instruction)
	}
	return instructions, nil
}

// requireCourier fails unless id names a delivery person.
func (s *OrderService) requireCourier(ctx context.Context, id uuid.UUID) error {
	invalid := newOrderError(ErrorInvalidDeliveryPerson, "Invalid delivery person ID or user is not a delivery person")
	if id == uuid.Nil {
		return invalid
	}
	user, err := s.store.FindUser(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return fmt.Errorf("load delivery person: %w", err)
	}
	if !user.IsDeliveryPerson() {
		return invalid
	}
	return nil
}

func (s *OrderService) statusChanged(change StatusChange) {
	s.metrics.StatusChanged(string(change.To))
	log.Printf("[Lifecycle] Order %s moved %s -> %s by %s (%s)",
		change.OrderID, change.From, change.To, change.ActorID, change.ActorRole)
	s.dispatch("status_changed", func(ctx context.Context) error {
		return s.notifier.NotifyStatusChanged(ctx, change)
	})
}

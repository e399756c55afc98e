package services

import (
	"github.com/google/uuid"

	"github.com/example/pharmadrop/internal/models"
)

// Principal is the authenticated caller of a core operation.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

// IsAdmin reports whether p is an administrator.
func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// Action is an operation guarded by the order policy.
type Action string

const (
	ActionUpdateStatus       Action = "update_status"
	ActionAssignDelivery     Action = "assign_delivery"
	ActionSetInstructions    Action = "set_instructions"
	ActionViewPharmacyOrders Action = "view_pharmacy_orders"
)

// OrderAccess is the part of an order (or pharmacy) the policy looks at.
type OrderAccess struct {
	OwnerID          uuid.UUID
	DeliveryPersonID *uuid.UUID
}

// Capacity is the relationship of an actor to a single order.
type Capacity int

const (
	CapacityNone Capacity = iota
	CapacityCourier
	CapacityOwner
	CapacityAdmin
)

func (c Capacity) String() string {
	switch c {
	case CapacityAdmin:
		return models.RoleAdmin
	case CapacityOwner:
		return models.RolePharmacyOwner
	case CapacityCourier:
		return models.RoleDeliveryPerson
	}
	return "none"
}

// ResolveCapacity picks the strongest relationship of p to the resource.
func ResolveCapacity(p Principal, access OrderAccess) Capacity {
	switch {
	case p.IsAdmin():
		return CapacityAdmin
	case p.UserID != uuid.Nil && p.UserID == access.OwnerID:
		return CapacityOwner
	case p.UserID != uuid.Nil && access.DeliveryPersonID != nil && *access.DeliveryPersonID == p.UserID:
		return CapacityCourier
	}
	return CapacityNone
}

// Authorize decides whether p may perform action on the resource.
func Authorize(p Principal, access OrderAccess, action Action) bool {
	c := ResolveCapacity(p, access)
	switch action {
	case ActionUpdateStatus:
		return c != CapacityNone
	case ActionAssignDelivery, ActionSetInstructions, ActionViewPharmacyOrders:
		return c == CapacityAdmin || c == CapacityOwner
	}
	return false
}

var transitions = map[Capacity]map[models.OrderStatus][]models.OrderStatus{
	CapacityCourier: {
		models.OrderStatusPacking:  {models.OrderStatusOnTheWay},
		models.OrderStatusOnTheWay: {models.OrderStatusDelivered},
	},
	CapacityOwner: {
		models.OrderStatusPacking:  {models.OrderStatusOnTheWay},
		models.OrderStatusOnTheWay: {models.OrderStatusDelivered},
	},
	CapacityAdmin: {
		models.OrderStatusPacking:  {models.OrderStatusOnTheWay, models.OrderStatusDelivered},
		models.OrderStatusOnTheWay: {models.OrderStatusDelivered},
	},
}

// canTransition reports whether an actor in capacity c may move an order from
// one status to another.
func canTransition(c Capacity, from, to models.OrderStatus) bool {
	for _, next := range transitions[c][from] {
		if next == to {
			return true
		}
	}
	return false
}

package models

import "github.com/google/uuid"

// OrderStatus is a step of the delivery lifecycle.
type OrderStatus string

const (
	OrderStatusPacking   OrderStatus = "packing"
	OrderStatusOnTheWay  OrderStatus = "on_the_way"
	OrderStatusDelivered OrderStatus = "delivered"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPacking, OrderStatusOnTheWay, OrderStatusDelivered:
		return true
	}
	return false
}

// Terminal reports whether no further transition is defined from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered
}

// Instruction priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"

	DefaultInstructionIcon = "info"
)

// ValidPriority reports whether p is an accepted instruction priority.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Order is the ledger entry of a placed order. Line items are frozen at
// creation; only status, delivery assignment and instructions change later.
type Order struct {
	BaseModel
	CustomerID       uuid.UUID            `gorm:"type:uuid;index;not null" json:"customerId"`
	Customer         *User                `gorm:"foreignKey:CustomerID" json:"-"`
	PharmacyID       uuid.UUID            `gorm:"type:uuid;index;not null" json:"pharmacyId"`
	Pharmacy         *Pharmacy            `gorm:"foreignKey:PharmacyID" json:"-"`
	DeliveryPersonID *uuid.UUID           `gorm:"type:uuid;index" json:"deliveryPersonId"`
	DeliveryPerson   *User                `gorm:"foreignKey:DeliveryPersonID" json:"-"`
	Status           OrderStatus          `gorm:"type:varchar(20);index;not null" json:"status"`
	DeliveryAddress  string               `gorm:"not null" json:"deliveryAddress"`
	Subtotal         float64              `json:"subtotal"`
	Discount         float64              `json:"discount"`
	TotalAmount      float64              `json:"totalAmount"`
	CouponCode       string               `json:"couponCode,omitempty"`
	Items            []OrderItem          `gorm:"foreignKey:OrderID" json:"items"`
	Instructions     []OrderInstruction   `gorm:"foreignKey:OrderID" json:"instructions"`
	StatusHistory    []OrderStatusHistory `gorm:"foreignKey:OrderID" json:"statusHistory,omitempty"`
}

// OrderItem is a snapshot of a catalog entry at order time.
type OrderItem struct {
	BaseModel
	OrderID    uuid.UUID `gorm:"type:uuid;index" json:"-"`
	MedicineID uuid.UUID `gorm:"type:uuid;index" json:"medicineId"`
	Medicine   *Medicine `gorm:"foreignKey:MedicineID" json:"-"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	Price      float64   `json:"price"`
}

// OrderInstruction is a preparation note attached while the order is packing.
type OrderInstruction struct {
	BaseModel
	OrderID  uuid.UUID `gorm:"type:uuid;index" json:"-"`
	Position int       `json:"-"`
	Text     string    `json:"text"`
	Icon     string    `json:"icon"`
	Priority string    `json:"priority"`
}

// OrderStatusHistory records one status change of an order.
type OrderStatusHistory struct {
	BaseModel
	OrderID    uuid.UUID   `gorm:"type:uuid;index" json:"-"`
	FromStatus OrderStatus `gorm:"type:varchar(20)" json:"fromStatus,omitempty"`
	ToStatus   OrderStatus `gorm:"type:varchar(20)" json:"toStatus"`
	ActorID    uuid.UUID   `gorm:"type:uuid" json:"actorId"`
	ActorRole  string      `json:"actorRole"`
}

// OrderFilter narrows order listings. Zero fields are ignored.
type OrderFilter struct {
	CustomerID       uuid.UUID
	PharmacyID       uuid.UUID
	DeliveryPersonID uuid.UUID
	Status           OrderStatus
	Limit            int
	Offset           int
}

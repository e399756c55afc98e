package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/example/pharmadrop/internal/models"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStockConflict is returned when a conditional stock decrement matched no row.
	ErrStockConflict = errors.New("stock is lower than the requested quantity")
	// ErrCouponConflict is returned when a coupon could not take one more use.
	ErrCouponConflict = errors.New("coupon is inactive or exhausted")
)

// TxManager runs fn inside a transaction. Stores called with the ctx handed
// to fn take part in that transaction; a returned error rolls it back.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store is the persistence contract of the order core.
type Store interface {
	TxManager

	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindPharmacy(ctx context.Context, id uuid.UUID) (*models.Pharmacy, error)
	FindMedicine(ctx context.Context, id uuid.UUID) (*models.Medicine, error)
	FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error)

	// FindOrder loads an order with its items and instructions.
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// LockOrder is FindOrder holding a row lock until the transaction ends.
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// ListOrders returns matching orders newest first, with display
	// relations joined, and the total count ignoring Limit/Offset.
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error)

	// DecrementStock subtracts quantity only if stock >= quantity.
	DecrementStock(ctx context.Context, medicineID uuid.UUID, quantity int) error
	// ConsumeCoupon adds one use only if the coupon is active and not exhausted.
	ConsumeCoupon(ctx context.Context, couponID uuid.UUID) error

	CreateOrder(ctx context.Context, order *models.Order) error
	// SaveOrderState persists the mutable envelope: status and delivery person.
	SaveOrderState(ctx context.Context, order *models.Order) error
	ReplaceInstructions(ctx context.Context, orderID uuid.UUID, instructions []models.OrderInstruction) error
	AppendStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error
}

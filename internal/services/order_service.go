package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/pharmadrop/internal/metrics"
	"github.com/example/pharmadrop/internal/models"
	"github.com/example/pharmadrop/internal/repository"
)

const defaultNotifyTimeout = 10 * time.Second

// OrderLine is one requested medicine of a new order.
type OrderLine struct {
	MedicineID uuid.UUID `json:"medicineId"`
	Quantity   int       `json:"quantity"`
}

// CreateOrderRequest is the customer's order payload.
type CreateOrderRequest struct {
	PharmacyID      uuid.UUID   `json:"pharmacyId"`
	Items           []OrderLine `json:"items"`
	DeliveryAddress string      `json:"deliveryAddress"`
	CouponCode      string      `json:"couponCode"`
}

// CouponCheck is the answer of a coupon dry run.
type CouponCheck struct {
	Valid          bool    `json:"valid"`
	Code           string  `json:"code"`
	DiscountAmount float64 `json:"discountAmount"`
	Discount       float64 `json:"discount"`
	UsageLeft      int     `json:"usageLeft"`
}

// OrderService reserves stock, prices and records orders, and drives their
// lifecycle afterwards.
type OrderService struct {
	store         repository.Store
	notifier      Notifier
	metrics       *metrics.Metrics
	notifyTimeout time.Duration
	wg            sync.WaitGroup
}

// NewOrderService creates a new OrderService. notifier and m may be nil.
func NewOrderService(store repository.Store, notifier Notifier, m *metrics.Metrics, notifyTimeout time.Duration) *OrderService {
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}
	return &OrderService{
		store:         store,
		notifier:      notifier,
		metrics:       m,
		notifyTimeout: notifyTimeout,
	}
}

// Wait blocks until every in-flight notification has finished.
func (s *OrderService) Wait() {
	s.wg.Wait()
}

func validateOrderRequest(req CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return newOrderError(ErrorValidation, "No order items")
	}
	for i, line := range req.Items {
		if line.MedicineID == uuid.Nil {
			return newOrderError(ErrorValidation, "Item %d: medicineId is required", i+1)
		}
		if line.Quantity <= 0 {
			return newOrderError(ErrorValidation, "Item %d: quantity must be greater than zero", i+1)
		}
	}
	if strings.TrimSpace(req.DeliveryAddress) == "" {
		return newOrderError(ErrorValidation, "Delivery address is required")
	}
	return nil
}

// CreateOrder validates every line against stock and the coupon rules, then
// commits all stock decrements, the coupon use and the order in one
// transaction. Either everything is written or nothing is.
func (s *OrderService) CreateOrder(ctx context.Context, actor Principal, req CreateOrderRequest) (*models.Order, error) {
	if err := validateOrderRequest(req); err != nil {
		s.metrics.OrderRejected(ErrorName(err))
		return nil, err
	}

	var (
		order    *models.Order
		pharmacy *models.Pharmacy
		units    int
	)
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		pharmacy, err = s.store.FindPharmacy(ctx, req.PharmacyID)
		if err != nil {
			return notFound(err, "Pharmacy not found")
		}

		// Validation phase: nothing is written until every line passes.
		demand := make(map[uuid.UUID]int, len(req.Items))
		reserveOrder := make([]uuid.UUID, 0, len(req.Items))
		items := make([]models.OrderItem, 0, len(req.Items))
		for _, line := range req.Items {
			medicine, err := s.store.FindMedicine(ctx, line.MedicineID)
			if err != nil {
				return notFound(err, "Medicine not found: %s", line.MedicineID)
			}
			if medicine.PharmacyID != pharmacy.ID {
				return newOrderError(ErrorValidation, "Medicine %s is not sold by %s", medicine.Name, pharmacy.Name)
			}
			if _, seen := demand[medicine.ID]; !seen {
				reserveOrder = append(reserveOrder, medicine.ID)
			}
			demand[medicine.ID] += line.Quantity
			if medicine.Stock < demand[medicine.ID] {
				return newOrderError(ErrorInsufficientStock, "Not enough stock for %s", medicine.Name)
			}
			items = append(items, models.OrderItem{
				MedicineID: medicine.ID,
				Name:       medicine.Name,
				Quantity:   line.Quantity,
				Price:      medicine.Price,
			})
			units += line.Quantity
		}

		subtotal := Subtotal(items).Round(2)
		discount := decimal.Zero
		code := models.NormalizeCouponCode(req.CouponCode)
		var coupon *models.Coupon
		if code != "" {
			coupon, err = s.store.FindCouponByCode(ctx, code)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("load coupon: %w", err)
			}
			if discount, err = EvaluateCoupon(coupon, subtotal); err != nil {
				return err
			}
		}

		// Commit phase. Conditional writes turn a lost race into a clean
		// rejection and roll back whatever was already applied.
		for _, id := range reserveOrder {
			if err := s.store.DecrementStock(ctx, id, demand[id]); err != nil {
				if errors.Is(err, repository.ErrStockConflict) {
					return newOrderError(ErrorInsufficientStock, "Not enough stock for %s", itemName(items, id))
				}
				return fmt.Errorf("reserve stock: %w", err)
			}
		}
		if coupon != nil {
			if err := s.store.ConsumeCoupon(ctx, coupon.ID); err != nil {
				if errors.Is(err, repository.ErrCouponConflict) {
					return newOrderError(ErrorCouponExhausted, "Coupon usage limit reached")
				}
				return fmt.Errorf("consume coupon: %w", err)
			}
		}

		quote := NewQuote(subtotal, discount)
		order = &models.Order{
			CustomerID:      actor.UserID,
			PharmacyID:      pharmacy.ID,
			Status:          models.OrderStatusPacking,
			DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
			Subtotal:        money(quote.Subtotal),
			Discount:        money(quote.Discount),
			TotalAmount:     money(quote.Total()),
			CouponCode:      code,
			Items:           items,
			Instructions:    []models.OrderInstruction{},
			StatusHistory: []models.OrderStatusHistory{{
				ToStatus:  models.OrderStatusPacking,
				ActorID:   actor.UserID,
				ActorRole: actor.Role,
			}},
		}
		if err := s.store.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
	if err != nil {
		s.metrics.OrderRejected(ErrorName(err))
		return nil, err
	}

	s.metrics.OrderCreated(units)
	log.Printf("[Order] Created order %s for customer %s at %s: total=%.2f discount=%.2f",
		order.ID, order.CustomerID, pharmacy.Name, order.TotalAmount, order.Discount)

	placed := *order
	s.dispatch("order_placed", func(ctx context.Context) error {
		customer, err := s.store.FindUser(ctx, placed.CustomerID)
		if err != nil {
			log.Printf("[Order] Customer %s lookup for confirmation failed: %v", placed.CustomerID, err)
		}
		return s.notifier.NotifyOrderPlaced(ctx, NewOrderConfirmation(&placed, customer, pharmacy))
	})
	return order, nil
}

// ValidateCoupon applies the order coupon rules to an arbitrary amount
// without consuming the coupon.
func (s *OrderService) ValidateCoupon(ctx context.Context, code string, orderTotal float64) (*CouponCheck, error) {
	coupon, err := s.store.FindCouponByCode(ctx, code)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	amount := decimal.NewFromFloat(orderTotal).Round(2)
	discount, err := EvaluateCoupon(coupon, amount)
	if err != nil {
		return nil, err
	}
	return &CouponCheck{
		Valid:          true,
		Code:           coupon.Code,
		DiscountAmount: coupon.DiscountAmount,
		Discount:       money(NewQuote(amount, discount).Discount),
		UsageLeft:      coupon.UsageLeft(),
	}, nil
}

// MyOrders lists the orders placed by actor.
func (s *OrderService) MyOrders(ctx context.Context, actor Principal, filter models.OrderFilter) ([]models.Order, int64, error) {
	filter.CustomerID = actor.UserID
	return s.store.ListOrders(ctx, filter)
}

// MyDeliveries lists the orders assigned to actor as courier.
func (s *OrderService) MyDeliveries(ctx context.Context, actor Principal, filter models.OrderFilter) ([]models.Order, int64, error) {
	filter.DeliveryPersonID = actor.UserID
	return s.store.ListOrders(ctx, filter)
}

// PharmacyOrders lists the orders of a pharmacy for its owner or an admin.
func (s *OrderService) PharmacyOrders(ctx context.Context, actor Principal, pharmacyID uuid.UUID, filter models.OrderFilter) ([]models.Order, int64, error) {
	pharmacy, err := s.store.FindPharmacy(ctx, pharmacyID)
	if err != nil {
		return nil, 0, notFound(err, "Pharmacy not found")
	}
	if !Authorize(actor, OrderAccess{OwnerID: pharmacy.OwnerID}, ActionViewPharmacyOrders) {
		return nil, 0, newOrderError(ErrorUnauthorized, "Not authorized to view orders for this pharmacy")
	}
	filter.PharmacyID = pharmacy.ID
	return s.store.ListOrders(ctx, filter)
}

// AllOrders lists every order; admin only.
func (s *OrderService) AllOrders(ctx context.Context, actor Principal, filter models.OrderFilter) ([]models.Order, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, newOrderError(ErrorUnauthorized, "Not authorized to list all orders")
	}
	return s.store.ListOrders(ctx, filter)
}

// GetOrder returns a single order to one of its parties.
func (s *OrderService) GetOrder(ctx context.Context, actor Principal, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "Order not found")
	}
	if order.CustomerID == actor.UserID {
		return order, nil
	}
	access, err := s.accessOf(ctx, order)
	if err != nil {
		return nil, err
	}
	if ResolveCapacity(actor, access) == CapacityNone {
		return nil, newOrderError(ErrorUnauthorized, "Not authorized to view this order")
	}
	return order, nil
}

// accessOf resolves the policy inputs of an order.
func (s *OrderService) accessOf(ctx context.Context, order *models.Order) (OrderAccess, error) {
	access := OrderAccess{DeliveryPersonID: order.DeliveryPersonID}
	pharmacy, err := s.store.FindPharmacy(ctx, order.PharmacyID)
	switch {
	case err == nil:
		access.OwnerID = pharmacy.OwnerID
	case errors.Is(err, repository.ErrNotFound):
		// A removed pharmacy leaves only admins and the courier in charge.
	default:
		return access, fmt.Errorf("load pharmacy: %w", err)
	}
	return access, nil
}

// dispatch runs fn in the background with a bounded context. Failures are
// logged and never reach the caller.
func (s *OrderService) dispatch(kind string, fn func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Notify] %s panicked: %v", kind, r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()

		err := fn(ctx)
		s.metrics.NotificationSent(kind, err)
		if err != nil {
			log.Printf("[Notify] %s failed: %v", kind, err)
		}
	}()
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return newOrderError(ErrorNotFound, format, args...)
	}
	return err
}

func itemName(items []models.OrderItem, medicineID uuid.UUID) string {
	for _, item := range items {
		if item.MedicineID == medicineID {
			return item.Name
		}
	}
	return medicineID.String()
}

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/pharmadrop/internal/models"
	"github.com/example/pharmadrop/internal/repository"
)

type recordingNotifier struct {
	mu      sync.Mutex
	placed  []OrderConfirmation
	changes []StatusChange
	err     error
}

func (n *recordingNotifier) NotifyOrderPlaced(_ context.Context, msg OrderConfirmation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.placed = append(n.placed, msg)
	return n.err
}

func (n *recordingNotifier) NotifyStatusChanged(_ context.Context, change StatusChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
	return n.err
}

func (n *recordingNotifier) Placed() []OrderConfirmation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]OrderConfirmation(nil), n.placed...)
}

func (n *recordingNotifier) Changes() []StatusChange {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]StatusChange(nil), n.changes...)
}

type fixture struct {
	store    *repository.MemoryStore
	svc      *OrderService
	notifier *recordingNotifier

	customer models.User
	owner    models.User
	courier  models.User
	admin    models.User
	stranger models.User
	pharmacy models.Pharmacy
	medicine models.Medicine
}

// setup seeds one pharmacy selling one $10 medicine with the given stock.
func setup(t *testing.T, stock int) *fixture {
	t.Helper()

	f := &fixture{
		store:    repository.NewMemoryStore(),
		notifier: &recordingNotifier{},
		customer: models.User{Name: "Cora", Email: "cora@example.com", Phone: "+15550000001", Role: models.RoleCustomer},
		owner:    models.User{Name: "Omar", Email: "omar@example.com", Role: models.RolePharmacyOwner},
		courier:  models.User{Name: "Dina", Email: "dina@example.com", Role: models.RoleDeliveryPerson},
		admin:    models.User{Name: "Ada", Email: "ada@example.com", Role: models.RoleAdmin},
		stranger: models.User{Name: "Sam", Email: "sam@example.com", Role: models.RolePharmacyOwner},
	}
	for _, u := range []*models.User{&f.customer, &f.owner, &f.courier, &f.admin, &f.stranger} {
		f.store.AddUser(u)
	}

	f.pharmacy = models.Pharmacy{Name: "Green Cross", OwnerID: f.owner.ID}
	f.store.AddPharmacy(&f.pharmacy)

	f.medicine = models.Medicine{
		Name:       "Ibuprofen 200mg",
		Price:      10,
		Stock:      stock,
		PharmacyID: f.pharmacy.ID,
		ExpiryDate: time.Now().AddDate(1, 0, 0),
	}
	f.store.AddMedicine(&f.medicine)

	f.svc = NewOrderService(f.store, f.notifier, nil, time.Second)
	t.Cleanup(f.svc.Wait)
	return f
}

func principal(u models.User) Principal {
	return Principal{UserID: u.ID, Role: u.Role}
}

func (f *fixture) addCoupon(t *testing.T, c models.Coupon) models.Coupon {
	t.Helper()
	f.store.AddCoupon(&c)
	return c
}

func (f *fixture) addMedicine(t *testing.T, name string, price float64, stock int) models.Medicine {
	t.Helper()
	m := models.Medicine{Name: name, Price: price, Stock: stock, PharmacyID: f.pharmacy.ID}
	f.store.AddMedicine(&m)
	return m
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	m, err := f.store.FindMedicine(context.Background(), id)
	require.NoError(t, err)
	return m.Stock
}

func (f *fixture) usedCount(t *testing.T, code string) int {
	t.Helper()
	c, err := f.store.FindCouponByCode(context.Background(), code)
	require.NoError(t, err)
	return c.UsedCount
}

func (f *fixture) orderCount(t *testing.T) int64 {
	t.Helper()
	_, total, err := f.store.ListOrders(context.Background(), models.OrderFilter{})
	require.NoError(t, err)
	return total
}

// placeOrder creates a packing order of one unit for the fixture customer.
func (f *fixture) placeOrder(t *testing.T) *models.Order {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), principal(f.customer), CreateOrderRequest{
		PharmacyID:      f.pharmacy.ID,
		Items:           []OrderLine{{MedicineID: f.medicine.ID, Quantity: 1}},
		DeliveryAddress: "12 Elm Street",
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) request(quantity int, coupon string) CreateOrderRequest {
	return CreateOrderRequest{
		PharmacyID:      f.pharmacy.ID,
		Items:           []OrderLine{{MedicineID: f.medicine.ID, Quantity: quantity}},
		DeliveryAddress: "12 Elm Street",
		CouponCode:      coupon,
	}
}

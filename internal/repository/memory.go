package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/pharmadrop/internal/models"
)

// MemoryStore is an in-process Store. A transaction holds the write lock for
// its whole duration and restores a snapshot when fn fails.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]models.User
	pharmacies map[uuid.UUID]models.Pharmacy
	medicines  map[uuid.UUID]models.Medicine
	coupons    map[uuid.UUID]models.Coupon
	orders     map[uuid.UUID]models.Order
}

var _ Store = (*MemoryStore)(nil)

type memoryTxKey struct{}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[uuid.UUID]models.User),
		pharmacies: make(map[uuid.UUID]models.Pharmacy),
		medicines:  make(map[uuid.UUID]models.Medicine),
		coupons:    make(map[uuid.UUID]models.Coupon),
		orders:     make(map[uuid.UUID]models.Order),
	}
}

func (m *MemoryStore) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(memoryTxKey{}).(*MemoryStore)
	return ok && owner == m
}

func (m *MemoryStore) rlock(ctx context.Context) func() {
	if m.inTx(ctx) {
		return func() {}
	}
	m.mu.RLock()
	return m.mu.RUnlock
}

func (m *MemoryStore) wlock(ctx context.Context) func() {
	if m.inTx(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.inTx(ctx) {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, memoryTxKey{}, m)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	medicines map[uuid.UUID]models.Medicine
	coupons   map[uuid.UUID]models.Coupon
	orders    map[uuid.UUID]models.Order
}

// snapshot copies the tables written by order transactions.
func (m *MemoryStore) snapshot() memorySnapshot {
	snap := memorySnapshot{
		medicines: make(map[uuid.UUID]models.Medicine, len(m.medicines)),
		coupons:   make(map[uuid.UUID]models.Coupon, len(m.coupons)),
		orders:    make(map[uuid.UUID]models.Order, len(m.orders)),
	}
	for id, med := range m.medicines {
		snap.medicines[id] = med
	}
	for id, c := range m.coupons {
		snap.coupons[id] = c
	}
	for id, o := range m.orders {
		snap.orders[id] = copyOrder(o)
	}
	return snap
}

func (m *MemoryStore) restore(snap memorySnapshot) {
	m.medicines = snap.medicines
	m.coupons = snap.coupons
	m.orders = snap.orders
}

// AddUser seeds a user, assigning an id when missing.
func (m *MemoryStore) AddUser(u *models.User) {
	defer m.wlock(context.Background())()
	stamp(&u.BaseModel)
	m.users[u.ID] = *u
}

// AddPharmacy seeds a pharmacy, assigning an id when missing.
func (m *MemoryStore) AddPharmacy(p *models.Pharmacy) {
	defer m.wlock(context.Background())()
	stamp(&p.BaseModel)
	m.pharmacies[p.ID] = *p
}

// AddMedicine seeds a medicine, assigning an id when missing.
func (m *MemoryStore) AddMedicine(med *models.Medicine) {
	defer m.wlock(context.Background())()
	stamp(&med.BaseModel)
	m.medicines[med.ID] = *med
}

// AddCoupon seeds a coupon, assigning an id when missing.
func (m *MemoryStore) AddCoupon(c *models.Coupon) {
	defer m.wlock(context.Background())()
	stamp(&c.BaseModel)
	c.Code = models.NormalizeCouponCode(c.Code)
	m.coupons[c.ID] = *c
}

func (m *MemoryStore) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	defer m.rlock(ctx)()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) FindPharmacy(ctx context.Context, id uuid.UUID) (*models.Pharmacy, error) {
	defer m.rlock(ctx)()
	p, ok := m.pharmacies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) FindMedicine(ctx context.Context, id uuid.UUID) (*models.Medicine, error) {
	defer m.rlock(ctx)()
	med, ok := m.medicines[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &med, nil
}

func (m *MemoryStore) FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	defer m.rlock(ctx)()
	code = models.NormalizeCouponCode(code)
	for _, c := range m.coupons {
		if c.Code == code {
			found := c
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	defer m.rlock(ctx)()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	found := copyOrder(o)
	return &found, nil
}

func (m *MemoryStore) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return m.FindOrder(ctx, id)
}

func (m *MemoryStore) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	defer m.rlock(ctx)()

	matched := make([]models.Order, 0)
	for _, o := range m.orders {
		if filter.CustomerID != uuid.Nil && o.CustomerID != filter.CustomerID {
			continue
		}
		if filter.PharmacyID != uuid.Nil && o.PharmacyID != filter.PharmacyID {
			continue
		}
		if filter.DeliveryPersonID != uuid.Nil &&
			(o.DeliveryPersonID == nil || *o.DeliveryPersonID != filter.DeliveryPersonID) {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		matched = append(matched, copyOrder(o))
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = matched[:0]
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	for i := range matched {
		m.join(&matched[i])
	}
	return matched, total, nil
}

// join fills the display relations the gorm store preloads.
func (m *MemoryStore) join(o *models.Order) {
	if u, ok := m.users[o.CustomerID]; ok {
		o.Customer = &u
	}
	if p, ok := m.pharmacies[o.PharmacyID]; ok {
		o.Pharmacy = &p
	}
	if o.DeliveryPersonID != nil {
		if u, ok := m.users[*o.DeliveryPersonID]; ok {
			o.DeliveryPerson = &u
		}
	}
	for i := range o.Items {
		if med, ok := m.medicines[o.Items[i].MedicineID]; ok {
			o.Items[i].Medicine = &med
		}
	}
}

func (m *MemoryStore) DecrementStock(ctx context.Context, medicineID uuid.UUID, quantity int) error {
	defer m.wlock(ctx)()
	med, ok := m.medicines[medicineID]
	if !ok || med.Stock < quantity {
		return ErrStockConflict
	}
	med.Stock -= quantity
	med.UpdatedAt = time.Now()
	m.medicines[medicineID] = med
	return nil
}

func (m *MemoryStore) ConsumeCoupon(ctx context.Context, couponID uuid.UUID) error {
	defer m.wlock(ctx)()
	c, ok := m.coupons[couponID]
	if !ok || !c.IsActive || c.UsedCount >= c.UsageLimit {
		return ErrCouponConflict
	}
	c.UsedCount++
	c.UpdatedAt = time.Now()
	m.coupons[couponID] = c
	return nil
}

func (m *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) error {
	defer m.wlock(ctx)()
	stamp(&order.BaseModel)
	for i := range order.Items {
		stamp(&order.Items[i].BaseModel)
		order.Items[i].OrderID = order.ID
	}
	for i := range order.Instructions {
		stamp(&order.Instructions[i].BaseModel)
		order.Instructions[i].OrderID = order.ID
	}
	for i := range order.StatusHistory {
		stamp(&order.StatusHistory[i].BaseModel)
		order.StatusHistory[i].OrderID = order.ID
	}
	m.orders[order.ID] = copyOrder(*order)
	return nil
}

func (m *MemoryStore) SaveOrderState(ctx context.Context, order *models.Order) error {
	defer m.wlock(ctx)()
	stored, ok := m.orders[order.ID]
	if !ok {
		return ErrNotFound
	}
	order.UpdatedAt = time.Now()
	stored.Status = order.Status
	stored.DeliveryPersonID = copyID(order.DeliveryPersonID)
	stored.UpdatedAt = order.UpdatedAt
	m.orders[order.ID] = stored
	return nil
}

func (m *MemoryStore) ReplaceInstructions(ctx context.Context, orderID uuid.UUID, instructions []models.OrderInstruction) error {
	defer m.wlock(ctx)()
	stored, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	replaced := make([]models.OrderInstruction, len(instructions))
	for i := range instructions {
		stamp(&instructions[i].BaseModel)
		instructions[i].OrderID = orderID
		instructions[i].Position = i
		replaced[i] = instructions[i]
	}
	stored.Instructions = replaced
	m.orders[orderID] = stored
	return nil
}

func (m *MemoryStore) AppendStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	defer m.wlock(ctx)()
	stored, ok := m.orders[entry.OrderID]
	if !ok {
		return ErrNotFound
	}
	stamp(&entry.BaseModel)
	stored.StatusHistory = append(append([]models.OrderStatusHistory(nil), stored.StatusHistory...), *entry)
	m.orders[entry.OrderID] = stored
	return nil
}

func stamp(b *models.BaseModel) {
	b.Stamp(time.Now())
}

func copyOrder(o models.Order) models.Order {
	o.Items = append(make([]models.OrderItem, 0, len(o.Items)), o.Items...)
	o.Instructions = append(make([]models.OrderInstruction, 0, len(o.Instructions)), o.Instructions...)
	o.StatusHistory = append([]models.OrderStatusHistory(nil), o.StatusHistory...)
	o.DeliveryPersonID = copyID(o.DeliveryPersonID)
	o.Customer, o.Pharmacy, o.DeliveryPerson = nil, nil, nil
	for i := range o.Items {
		o.Items[i].Medicine = nil
	}
	return o
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}

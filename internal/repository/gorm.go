package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/pharmadrop/internal/models"
)

type gormTxKey struct{}

// GormStore implements Store on top of a gorm connection.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// conn returns the transaction bound to ctx, if any.
func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

// WithTransaction runs fn in a database transaction. Nested calls join the
// outer transaction.
func (s *GormStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, gormTxKey{}, tx))
	})
}

func (s *GormStore) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) FindPharmacy(ctx context.Context, id uuid.UUID) (*models.Pharmacy, error) {
	var pharmacy models.Pharmacy
	if err := s.conn(ctx).First(&pharmacy, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &pharmacy, nil
}

func (s *GormStore) FindMedicine(ctx context.Context, id uuid.UUID) (*models.Medicine, error) {
	var medicine models.Medicine
	if err := s.conn(ctx).First(&medicine, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &medicine, nil
}

func (s *GormStore) FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := s.conn(ctx).First(&coupon, "code = ?", models.NormalizeCouponCode(code)).Error; err != nil {
		return nil, translate(err)
	}
	return &coupon, nil
}

func (s *GormStore) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.findOrder(s.conn(ctx), id)
}

func (s *GormStore) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.findOrder(s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (s *GormStore) findOrder(db *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := db.Preload("Items").
		Preload("Instructions", byPosition).
		Preload("StatusHistory", byCreation).
		First(&order, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (s *GormStore) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	query := s.conn(ctx).Model(&models.Order{})

	if filter.CustomerID != uuid.Nil {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.PharmacyID != uuid.Nil {
		query = query.Where("pharmacy_id = ?", filter.PharmacyID)
	}
	if filter.DeliveryPersonID != uuid.Nil {
		query = query.Where("delivery_person_id = ?", filter.DeliveryPersonID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Preload("Customer").
		Preload("Pharmacy").
		Preload("DeliveryPerson").
		Preload("Items.Medicine").
		Preload("Instructions", byPosition).
		Order("created_at desc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *GormStore) DecrementStock(ctx context.Context, medicineID uuid.UUID, quantity int) error {
	res := s.conn(ctx).Model(&models.Medicine{}).
		Where("id = ? AND stock >= ?", medicineID, quantity).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock - ?", quantity),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStockConflict
	}
	return nil
}

func (s *GormStore) ConsumeCoupon(ctx context.Context, couponID uuid.UUID) error {
	res := s.conn(ctx).Model(&models.Coupon{}).
		Where("id = ? AND is_active = ? AND used_count < usage_limit", couponID, true).
		UpdateColumns(map[string]any{
			"used_count": gorm.Expr("used_count + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCouponConflict
	}
	return nil
}

func (s *GormStore) CreateOrder(ctx context.Context, order *models.Order) error {
	return s.conn(ctx).Create(order).Error
}

func (s *GormStore) SaveOrderState(ctx context.Context, order *models.Order) error {
	order.UpdatedAt = time.Now()
	res := s.conn(ctx).Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"status":             order.Status,
			"delivery_person_id": order.DeliveryPersonID,
			"updated_at":         order.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ReplaceInstructions(ctx context.Context, orderID uuid.UUID, instructions []models.OrderInstruction) error {
	db := s.conn(ctx)
	if err := db.Where("order_id = ?", orderID).Delete(&models.OrderInstruction{}).Error; err != nil {
		return err
	}
	if len(instructions) == 0 {
		return nil
	}
	for i := range instructions {
		instructions[i].OrderID = orderID
		instructions[i].Position = i
	}
	return db.Create(&instructions).Error
}

func (s *GormStore) AppendStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	return s.conn(ctx).Create(entry).Error
}

func byCreation(db *gorm.DB) *gorm.DB {
	return db.Order("created_at asc")
}

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position asc")
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

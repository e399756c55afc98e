package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/pharmadrop/internal/middleware"
	"github.com/example/pharmadrop/internal/models"
	"github.com/example/pharmadrop/internal/utils"
)

var expiryLayouts = []string{time.RFC3339, "2006-01-02"}

// MedicineHandler manages the medicine catalog.
type MedicineHandler struct {
	db *gorm.DB
}

// NewMedicineHandler constructs MedicineHandler.
func NewMedicineHandler(db *gorm.DB) *MedicineHandler {
	return &MedicineHandler{db: db}
}

type medicineRequest struct {
	Name                *string    `json:"name"`
	Description         *string    `json:"description"`
	Price               *float64   `json:"price"`
	Stock               *int       `json:"stock"`
	Image               *string    `json:"image"`
	PharmacyID          *uuid.UUID `json:"pharmacyId"`
	Category            *string    `json:"category"`
	ExpiryDate          *string    `json:"expiryDate"`
	StorageInstructions *string    `json:"storageInstructions"`
	Manufacturer        *string    `json:"manufacturer"`
}

// discountColumns are the columns written by the discount endpoints.
var discountColumns = []string{"is_discounted", "discount_percentage", "discounted_price"}

type discountRequest struct {
	DiscountPercentage float64 `json:"discountPercentage"`
}

// ListMedicines returns the catalog with optional search and category filters.
func (h *MedicineHandler) ListMedicines(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Medicine{})

	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q := "%" + search + "%"
		query = query.Where("name ILIKE ? OR manufacturer ILIKE ?", q, q)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var medicines []models.Medicine
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&medicines).Error; err != nil {
		return err
	}

	utils.SetTotalCount(c, total)
	return c.JSON(newMedicineViews(medicines))
}

// GetMedicine returns one medicine.
func (h *MedicineHandler) GetMedicine(c *fiber.Ctx) error {
	medicine, err := h.find(c)
	if err != nil {
		return err
	}
	return c.JSON(newMedicineView(*medicine, time.Now()))
}

// ListByPharmacy returns the catalog of one pharmacy.
func (h *MedicineHandler) ListByPharmacy(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("pharmacyId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid pharmacy id")
	}

	var medicines []models.Medicine
	if err := h.db.Where("pharmacy_id = ?", id).Order("name asc").Find(&medicines).Error; err != nil {
		return err
	}
	return c.JSON(newMedicineViews(medicines))
}

// NearExpiry returns in-stock medicines expiring within the next three months.
func (h *MedicineHandler) NearExpiry(c *fiber.Ctx) error {
	now := time.Now()

	var medicines []models.Medicine
	if err := h.db.Preload("Pharmacy").
		Where("expiry_date BETWEEN ? AND ?", now, models.NearExpiryCutoff(now)).
		Where("stock > 0").
		Order("expiry_date asc").
		Find(&medicines).Error; err != nil {
		return err
	}
	return c.JSON(newMedicineViews(medicines))
}

// Discounted returns in-stock, unexpired medicines with an active discount.
func (h *MedicineHandler) Discounted(c *fiber.Ctx) error {
	var medicines []models.Medicine
	if err := h.db.Preload("Pharmacy").
		Where("is_discounted = ? AND stock > 0 AND expiry_date >= ?", true, time.Now()).
		Order("expiry_date asc").
		Find(&medicines).Error; err != nil {
		return err
	}
	return c.JSON(newMedicineViews(medicines))
}

// CreateMedicine adds a medicine to a pharmacy owned by the caller.
func (h *MedicineHandler) CreateMedicine(c *fiber.Ctx) error {
	var req medicineRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.PharmacyID == nil || *req.PharmacyID == uuid.Nil {
		return fiber.NewError(fiber.StatusBadRequest, "pharmacyId is required")
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" || req.Price == nil {
		return fiber.NewError(fiber.StatusBadRequest, "Please provide medicine name and price")
	}

	var pharmacy models.Pharmacy
	if err := h.db.First(&pharmacy, "id = ?", *req.PharmacyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Pharmacy not found")
		}
		return err
	}
	if userID, _ := middleware.GetCurrentUserID(c); pharmacy.OwnerID != userID {
		return fiber.NewError(fiber.StatusUnauthorized, "Not authorized to add medicine to this pharmacy")
	}

	medicine := models.Medicine{PharmacyID: pharmacy.ID}
	if _, err := applyMedicineRequest(&medicine, req); err != nil {
		return err
	}
	if err := h.db.Create(&medicine).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newMedicineView(medicine, time.Now()))
}

// UpdateMedicine changes catalog fields; pharmacy owner or admin.
func (h *MedicineHandler) UpdateMedicine(c *fiber.Ctx) error {
	medicine, err := h.findOwned(c, true, "Not authorized to update this medicine")
	if err != nil {
		return err
	}

	var req medicineRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.PharmacyID = nil
	columns, err := applyMedicineRequest(medicine, req)
	if err != nil {
		return err
	}

	if err := saveMedicine(h.db, medicine, columns).Error; err != nil {
		return err
	}
	return c.JSON(newMedicineView(*medicine, time.Now()))
}

// DeleteMedicine removes a medicine; pharmacy owner or admin. Order items
// keep their name and price snapshot.
func (h *MedicineHandler) DeleteMedicine(c *fiber.Ctx) error {
	medicine, err := h.findOwned(c, true, "Not authorized to delete this medicine")
	if err != nil {
		return err
	}

	if err := h.db.Delete(&models.Medicine{}, "id = ?", medicine.ID).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Medicine removed"})
}

// ApplyDiscount marks a medicine as discounted; pharmacy owner only.
func (h *MedicineHandler) ApplyDiscount(c *fiber.Ctx) error {
	var req discountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	medicine, err := h.findOwned(c, false, "Not authorized to apply discount to this medicine")
	if err != nil {
		return err
	}

	if err := medicine.ApplyDiscount(req.DiscountPercentage); err != nil {
		if errors.Is(err, models.ErrInvalidDiscountPercentage) {
			return fiber.NewError(fiber.StatusBadRequest, "Please provide a valid discount percentage (0-100)")
		}
		return err
	}

	if err := saveMedicine(h.db, medicine, discountColumns).Error; err != nil {
		return err
	}
	return c.JSON(newMedicineView(*medicine, time.Now()))
}

// RemoveDiscount clears a discount; pharmacy owner only.
func (h *MedicineHandler) RemoveDiscount(c *fiber.Ctx) error {
	medicine, err := h.findOwned(c, false, "Not authorized to modify this medicine")
	if err != nil {
		return err
	}

	medicine.RemoveDiscount()
	if err := saveMedicine(h.db, medicine, discountColumns).Error; err != nil {
		return err
	}
	return c.JSON(newMedicineView(*medicine, time.Now()))
}

func (h *MedicineHandler) find(c *fiber.Ctx) (*models.Medicine, error) {
	id, err := paramID(c)
	if err != nil {
		return nil, err
	}

	var medicine models.Medicine
	if err := h.db.First(&medicine, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Medicine not found")
		}
		return nil, err
	}
	return &medicine, nil
}

// findOwned loads the medicine and checks the caller owns its pharmacy.
func (h *MedicineHandler) findOwned(c *fiber.Ctx, adminAllowed bool, deniedMsg string) (*models.Medicine, error) {
	medicine, err := h.find(c)
	if err != nil {
		return nil, err
	}

	p, _ := middleware.GetPrincipal(c)
	if adminAllowed && p.IsAdmin() {
		return medicine, nil
	}

	var pharmacy models.Pharmacy
	if err := h.db.First(&pharmacy, "id = ?", medicine.PharmacyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusUnauthorized, deniedMsg)
		}
		return nil, err
	}
	if pharmacy.OwnerID != p.UserID {
		return nil, fiber.NewError(fiber.StatusUnauthorized, deniedMsg)
	}
	return medicine, nil
}

// saveMedicine writes only the given columns. stock is owned by checkout and
// is written here only when the caller set it explicitly.
func saveMedicine(db *gorm.DB, m *models.Medicine, columns []string) *gorm.DB {
	if len(columns) == 0 {
		return db
	}
	return db.Model(m).Select(columns).Updates(m)
}

// applyMedicineRequest copies the set fields of req onto m and returns the
// columns it changed.
func applyMedicineRequest(m *models.Medicine, req medicineRequest) ([]string, error) {
	var columns []string
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		m.Name = strings.TrimSpace(*req.Name)
		columns = append(columns, "name")
	}
	if req.Description != nil {
		m.Description = *req.Description
		columns = append(columns, "description")
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "price must not be negative")
		}
		m.Price = *req.Price
		columns = append(columns, "price")
		if m.IsDiscounted && m.DiscountPercentage != nil {
			if err := m.ApplyDiscount(*m.DiscountPercentage); err != nil {
				return nil, err
			}
			columns = append(columns, discountColumns...)
		}
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "stock must not be negative")
		}
		m.Stock = *req.Stock
		columns = append(columns, "stock")
	}
	if req.Image != nil {
		m.Image = *req.Image
		columns = append(columns, "image")
	}
	if req.Category != nil {
		m.Category = *req.Category
		columns = append(columns, "category")
	}
	if req.ExpiryDate != nil {
		expiry, err := parseExpiry(*req.ExpiryDate)
		if err != nil {
			return nil, err
		}
		m.ExpiryDate = expiry
		columns = append(columns, "expiry_date")
	}
	if req.StorageInstructions != nil {
		m.StorageInstructions = *req.StorageInstructions
		columns = append(columns, "storage_instructions")
	}
	if req.Manufacturer != nil {
		m.Manufacturer = *req.Manufacturer
		columns = append(columns, "manufacturer")
	}
	return columns, nil
}

func parseExpiry(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "invalid expiryDate")
}

// RegisterMedicineRoutes attaches medicine routes; writes go through auth.
func (h *MedicineHandler) RegisterMedicineRoutes(router fiber.Router, auth fiber.Handler) {
	owner := middleware.RequireRoles(models.RolePharmacyOwner)
	staff := middleware.RequireRoles(models.RolePharmacyOwner, models.RoleAdmin)

	router.Get("/", h.ListMedicines)
	router.Get("/expiry/near", h.NearExpiry)
	router.Get("/discounted/all", h.Discounted)
	router.Get("/pharmacy/:pharmacyId", h.ListByPharmacy)
	router.Get("/:id", h.GetMedicine)
	router.Post("/", auth, owner, h.CreateMedicine)
	router.Put("/:id/discount", auth, owner, h.ApplyDiscount)
	router.Put("/:id/discount/remove", auth, owner, h.RemoveDiscount)
	router.Put("/:id", auth, staff, h.UpdateMedicine)
	router.Delete("/:id", auth, staff, h.DeleteMedicine)
}

package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/pharmadrop/internal/middleware"
	"github.com/example/pharmadrop/internal/models"
)

// PharmacyHandler manages pharmacy CRUD.
type PharmacyHandler struct {
	db *gorm.DB
}

// NewPharmacyHandler constructs PharmacyHandler.
func NewPharmacyHandler(db *gorm.DB) *PharmacyHandler {
	return &PharmacyHandler{db: db}
}

type pharmacyRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Image   string `json:"image"`
}

// ListPharmacies returns all pharmacies, optionally of one owner.
func (h *PharmacyHandler) ListPharmacies(c *fiber.Ctx) error {
	query := h.db.Model(&models.Pharmacy{})
	if v := c.Query("ownerId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid ownerId")
		}
		query = query.Where("owner_id = ?", id)
	}

	var pharmacies []models.Pharmacy
	if err := query.Order("name asc").Find(&pharmacies).Error; err != nil {
		return err
	}
	return c.JSON(pharmacies)
}

// GetPharmacy returns one pharmacy.
func (h *PharmacyHandler) GetPharmacy(c *fiber.Ctx) error {
	pharmacy, err := h.find(c)
	if err != nil {
		return err
	}
	return c.JSON(pharmacy)
}

// CreatePharmacy registers a pharmacy owned by the caller.
func (h *PharmacyHandler) CreatePharmacy(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "Not authorized")
	}

	var req pharmacyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || strings.TrimSpace(req.Address) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Please provide pharmacy name and address")
	}

	if taken, err := h.nameTaken(req.Name, uuid.Nil); err != nil {
		return err
	} else if taken {
		return fiber.NewError(fiber.StatusBadRequest, "Pharmacy with this name already exists")
	}

	pharmacy := models.Pharmacy{
		Name:    req.Name,
		OwnerID: userID,
		Address: strings.TrimSpace(req.Address),
		Phone:   strings.TrimSpace(req.Phone),
		Image:   strings.TrimSpace(req.Image),
	}
	if err := h.db.Create(&pharmacy).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(pharmacy)
}

// UpdatePharmacy changes a pharmacy; owner only.
func (h *PharmacyHandler) UpdatePharmacy(c *fiber.Ctx) error {
	pharmacy, err := h.find(c)
	if err != nil {
		return err
	}
	if userID, _ := middleware.GetCurrentUserID(c); pharmacy.OwnerID != userID {
		return fiber.NewError(fiber.StatusUnauthorized, "Not authorized to update this pharmacy")
	}

	var req pharmacyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if name := strings.TrimSpace(req.Name); name != "" && name != pharmacy.Name {
		if taken, err := h.nameTaken(name, pharmacy.ID); err != nil {
			return err
		} else if taken {
			return fiber.NewError(fiber.StatusBadRequest, "Pharmacy with this name already exists")
		}
		pharmacy.Name = name
	}
	if v := strings.TrimSpace(req.Address); v != "" {
		pharmacy.Address = v
	}
	if v := strings.TrimSpace(req.Phone); v != "" {
		pharmacy.Phone = v
	}
	if v := strings.TrimSpace(req.Image); v != "" {
		pharmacy.Image = v
	}

	if err := h.db.Save(pharmacy).Error; err != nil {
		return err
	}
	return c.JSON(pharmacy)
}

// DeletePharmacy removes a pharmacy; owner or admin. Orders keep their
// snapshot and stay readable.
func (h *PharmacyHandler) DeletePharmacy(c *fiber.Ctx) error {
	pharmacy, err := h.find(c)
	if err != nil {
		return err
	}
	p, _ := middleware.GetPrincipal(c)
	if pharmacy.OwnerID != p.UserID && !p.IsAdmin() {
		return fiber.NewError(fiber.StatusUnauthorized, "Not authorized to delete this pharmacy")
	}

	if err := h.db.Delete(&models.Pharmacy{}, "id = ?", pharmacy.ID).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Pharmacy removed"})
}

func (h *PharmacyHandler) find(c *fiber.Ctx) (*models.Pharmacy, error) {
	id, err := paramID(c)
	if err != nil {
		return nil, err
	}

	var pharmacy models.Pharmacy
	if err := h.db.First(&pharmacy, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Pharmacy not found")
		}
		return nil, err
	}
	return &pharmacy, nil
}

func (h *PharmacyHandler) nameTaken(name string, except uuid.UUID) (bool, error) {
	var count int64
	err := h.db.Model(&models.Pharmacy{}).
		Where("name = ? AND id <> ?", name, except).
		Count(&count).Error
	return count > 0, err
}

// RegisterPharmacyRoutes attaches pharmacy routes; writes go through auth.
func (h *PharmacyHandler) RegisterPharmacyRoutes(router fiber.Router, auth fiber.Handler) {
	staff := middleware.RequireRoles(models.RolePharmacyOwner, models.RoleAdmin)

	router.Get("/", h.ListPharmacies)
	router.Get("/:id", h.GetPharmacy)
	router.Post("/", auth, staff, h.CreatePharmacy)
	router.Put("/:id", auth, staff, h.UpdatePharmacy)
	router.Delete("/:id", auth, staff, h.DeletePharmacy)
}

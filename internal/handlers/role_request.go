package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/pharmadrop/internal/middleware"
	"github.com/example/pharmadrop/internal/models"
)

// RoleRequestHandler manages the staff role upgrade workflow.
type RoleRequestHandler struct {
	db *gorm.DB
}

// NewRoleRequestHandler constructs RoleRequestHandler.
func NewRoleRequestHandler(db *gorm.DB) *RoleRequestHandler {
	return &RoleRequestHandler{db: db}
}

type roleRequestBody struct {
	RequestedRole string `json:"requestedRole"`
}

// RequestRole files a request for a staff role. Only one request per user
// may be pending.
func (h *RoleRequestHandler) RequestRole(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "Not authorized")
	}

	var req roleRequestBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if !models.IsRequestableRole(req.RequestedRole) {
		return fiber.NewError(fiber.StatusBadRequest, "requestedRole must be pharmacy_owner or delivery_person")
	}

	var count int64
	if err := h.db.Model(&models.RoleRequest{}).
		Where("user_id = ? AND status = ?", userID, models.RoleRequestPending).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fiber.NewError(fiber.StatusBadRequest, "You already have a pending role request")
	}

	request := models.RoleRequest{
		UserID:        userID,
		RequestedRole: req.RequestedRole,
		Status:        models.RoleRequestPending,
	}
	if err := h.db.Create(&request).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(request)
}

// ListPending returns pending requests with the requesting user.
func (h *RoleRequestHandler) ListPending(c *fiber.Ctx) error {
	var requests []models.RoleRequest
	if err := h.db.Preload("User").
		Where("status = ?", models.RoleRequestPending).
		Order("created_at asc").
		Find(&requests).Error; err != nil {
		return err
	}
	return c.JSON(requests)
}

// Approve grants the requested role.
func (h *RoleRequestHandler) Approve(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		request, err := pendingRequest(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Model(request).Update("status", models.RoleRequestApproved).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("id = ?", request.UserID).
			Update("role", request.RequestedRole).Error
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Role request approved and user role updated"})
}

// Reject closes the request without changing the user.
func (h *RoleRequestHandler) Reject(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		request, err := pendingRequest(tx, id)
		if err != nil {
			return err
		}
		return tx.Model(request).Update("status", models.RoleRequestRejected).Error
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Role request rejected"})
}

// pendingRequest locks the request row for the rest of tx and fails unless
// it is still pending.
func pendingRequest(tx *gorm.DB, id any) (*models.RoleRequest, error) {
	var request models.RoleRequest
	if err := lockRequest(tx, &request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Role request not found")
		}
		return nil, err
	}
	if request.Status != models.RoleRequestPending {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Role request is already "+request.Status)
	}
	return &request, nil
}

func lockRequest(tx *gorm.DB, request *models.RoleRequest, id any) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(request, "id = ?", id)
}

// RegisterRoleRequestRoutes attaches role request routes. router must
// already carry the auth middleware.
func (h *RoleRequestHandler) RegisterRoleRequestRoutes(router fiber.Router) {
	admin := middleware.RequireRoles(models.RoleAdmin)

	router.Post("/", h.RequestRole)
	router.Get("/pending", admin, h.ListPending)
	router.Put("/:id/approve", admin, h.Approve)
	router.Put("/:id/reject", admin, h.Reject)
}

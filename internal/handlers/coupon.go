package handlers

import (
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/pharmadrop/internal/middleware"
	"github.com/example/pharmadrop/internal/models"
	"github.com/example/pharmadrop/internal/services"
)

const couponCodeLength = 6

// CouponHandler manages coupons. Validation goes through the order engine so
// it applies the same rules as checkout.
type CouponHandler struct {
	db  *gorm.DB
	svc *services.OrderService
}

// NewCouponHandler constructs CouponHandler.
func NewCouponHandler(db *gorm.DB, svc *services.OrderService) *CouponHandler {
	return &CouponHandler{db: db, svc: svc}
}

type createCouponRequest struct {
	Code           string  `json:"code"`
	MinAmount      float64 `json:"minAmount"`
	DiscountAmount float64 `json:"discountAmount"`
	UsageLimit     int     `json:"usageLimit"`
}

type updateCouponRequest struct {
	MinAmount      *float64 `json:"minAmount"`
	DiscountAmount *float64 `json:"discountAmount"`
	UsageLimit     *int     `json:"usageLimit"`
	IsActive       *bool    `json:"isActive"`
}

type validateCouponRequest struct {
	Code       string  `json:"code"`
	OrderTotal float64 `json:"orderTotal"`
}

// CreateCoupon creates a coupon, generating a code when none is given.
func (h *CouponHandler) CreateCoupon(c *fiber.Ctx) error {
	var req createCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.UsageLimit < 1 || req.DiscountAmount < 0 || req.MinAmount < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "usageLimit must be at least 1 and amounts must not be negative")
	}

	code := models.NormalizeCouponCode(req.Code)
	if code == "" {
		generated, err := generateCouponCode()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to generate coupon code")
		}
		code = generated
	}

	var count int64
	if err := h.db.Model(&models.Coupon{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Coupon code already exists")
	}

	coupon := models.Coupon{
		Code:           code,
		MinAmount:      req.MinAmount,
		DiscountAmount: req.DiscountAmount,
		UsageLimit:     req.UsageLimit,
		IsActive:       true,
	}
	if err := h.db.Create(&coupon).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(coupon)
}

// ListCoupons returns every coupon, newest first.
func (h *CouponHandler) ListCoupons(c *fiber.Ctx) error {
	var coupons []models.Coupon
	if err := h.db.Order("created_at desc").Find(&coupons).Error; err != nil {
		return err
	}
	return c.JSON(coupons)
}

// UpdateCoupon changes limits, amounts or the active flag.
func (h *CouponHandler) UpdateCoupon(c *fiber.Ctx) error {
	coupon, err := h.find(c)
	if err != nil {
		return err
	}

	var req updateCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.MinAmount != nil {
		if *req.MinAmount < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "minAmount must not be negative")
		}
		coupon.MinAmount = *req.MinAmount
	}
	if req.DiscountAmount != nil {
		if *req.DiscountAmount < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "discountAmount must not be negative")
		}
		coupon.DiscountAmount = *req.DiscountAmount
	}
	if req.UsageLimit != nil {
		if *req.UsageLimit < 1 || *req.UsageLimit < coupon.UsedCount {
			return fiber.NewError(fiber.StatusBadRequest, "usageLimit must be at least 1 and not below usedCount")
		}
		coupon.UsageLimit = *req.UsageLimit
	}
	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}

	// used_count is owned by checkout and never written here.
	if err := h.db.Model(coupon).
		Select("min_amount", "discount_amount", "usage_limit", "is_active").
		Updates(coupon).Error; err != nil {
		return err
	}
	return c.JSON(coupon)
}

// DeleteCoupon removes a coupon. Orders keep the code they were placed with.
func (h *CouponHandler) DeleteCoupon(c *fiber.Ctx) error {
	coupon, err := h.find(c)
	if err != nil {
		return err
	}
	if err := h.db.Delete(&models.Coupon{}, "id = ?", coupon.ID).Error; err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ValidateCoupon checks a code against an order total without using it.
func (h *CouponHandler) ValidateCoupon(c *fiber.Ctx) error {
	var req validateCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	check, err := h.svc.ValidateCoupon(c.UserContext(), req.Code, req.OrderTotal)
	if err != nil {
		return err
	}
	return c.JSON(check)
}

func (h *CouponHandler) find(c *fiber.Ctx) (*models.Coupon, error) {
	id, err := paramID(c)
	if err != nil {
		return nil, err
	}

	var coupon models.Coupon
	if err := h.db.First(&coupon, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Coupon not found")
		}
		return nil, err
	}
	return &coupon, nil
}

func generateCouponCode() (string, error) {
	max := big.NewInt(26)
	code := make([]byte, couponCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = byte('A' + n.Int64())
	}
	return string(code), nil
}

// RegisterCouponRoutes attaches coupon routes. router must already carry the
// auth middleware.
func (h *CouponHandler) RegisterCouponRoutes(router fiber.Router) {
	admin := middleware.RequireRoles(models.RoleAdmin)

	router.Post("/validate", h.ValidateCoupon)
	router.Post("/", admin, h.CreateCoupon)
	router.Get("/", admin, h.ListCoupons)
	router.Put("/:id", admin, h.UpdateCoupon)
	router.Delete("/:id", admin, h.DeleteCoupon)
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/pharmadrop/internal/models"
	"github.com/example/pharmadrop/internal/utils"
)

// AdminHandler manages user listing and dashboard endpoints.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// ListUsers returns users, optionally filtered by role or a name/email search.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.User{})

	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("name ILIKE ? OR email ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var users []models.User
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return err
	}

	utils.SetTotalCount(c, total)
	return c.JSON(users)
}

// DashboardStats returns order counts per status and delivered revenue.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	type statusCount struct {
		Status models.OrderStatus
		Count  int64
	}

	var counts []statusCount
	if err := h.db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return err
	}

	byStatus := fiber.Map{
		string(models.OrderStatusPacking):   int64(0),
		string(models.OrderStatusOnTheWay):  int64(0),
		string(models.OrderStatusDelivered): int64(0),
	}
	var totalOrders int64
	for _, sc := range counts {
		byStatus[string(sc.Status)] = sc.Count
		totalOrders += sc.Count
	}

	var revenue float64
	if err := h.db.Model(&models.Order{}).
		Where("status = ?", models.OrderStatusDelivered).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&revenue).Error; err != nil {
		return err
	}

	var users, pharmacies, medicines int64
	h.db.Model(&models.User{}).Count(&users)
	h.db.Model(&models.Pharmacy{}).Count(&pharmacies)
	h.db.Model(&models.Medicine{}).Count(&medicines)

	return c.JSON(fiber.Map{
		"totalOrders":      totalOrders,
		"ordersByStatus":   byStatus,
		"deliveredRevenue": revenue,
		"totalUsers":       users,
		"totalPharmacies":  pharmacies,
		"totalMedicines":   medicines,
	})
}

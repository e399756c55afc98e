package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/pharmadrop/internal/middleware"
	"github.com/example/pharmadrop/internal/models"
	"github.com/example/pharmadrop/internal/services"
	"github.com/example/pharmadrop/internal/utils"
)

// OrderHandler exposes the order core over HTTP.
type OrderHandler struct {
	svc *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(svc *services.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterOrderRoutes attaches order routes. router must already carry the
// auth middleware.
func (h *OrderHandler) RegisterOrderRoutes(orders fiber.Router) {
	orders.Post("/", middleware.RequireRoles(models.RoleCustomer), h.CreateOrder)
	orders.Get("/myorders", middleware.RequireRoles(models.RoleCustomer), h.MyOrders)
	orders.Get("/mydeliveries", middleware.RequireRoles(models.RoleDeliveryPerson), h.MyDeliveries)
	orders.Get("/pharmacy/:id", middleware.RequireRoles(models.RolePharmacyOwner, models.RoleAdmin), h.PharmacyOrders)
	orders.Post("/instructions/:id", middleware.RequireRoles(models.RolePharmacyOwner, models.RoleAdmin), h.SetInstructions)
	orders.Get("/", middleware.RequireRoles(models.RoleAdmin), h.AllOrders)
	orders.Get("/:id", h.GetOrder)
	orders.Put("/:id/status", middleware.RequireRoles(models.RolePharmacyOwner, models.RoleDeliveryPerson, models.RoleAdmin), h.UpdateStatus)
	orders.Put("/:id/assign-delivery", middleware.RequireRoles(models.RolePharmacyOwner, models.RoleAdmin), h.AssignDelivery)
}

// CreateOrder places an order for the authenticated customer.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}

	var req services.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.svc.CreateOrder(c.UserContext(), actor, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// MyOrders lists the caller's own orders.
func (h *OrderHandler) MyOrders(c *fiber.Ctx) error {
	return h.list(c, h.svc.MyOrders)
}

// MyDeliveries lists orders assigned to the calling courier.
func (h *OrderHandler) MyDeliveries(c *fiber.Ctx) error {
	return h.list(c, h.svc.MyDeliveries)
}

// AllOrders lists every order.
func (h *OrderHandler) AllOrders(c *fiber.Ctx) error {
	return h.list(c, h.svc.AllOrders)
}

// PharmacyOrders lists orders placed at one pharmacy.
func (h *OrderHandler) PharmacyOrders(c *fiber.Ctx) error {
	pharmacyID, err := paramID(c)
	if err != nil {
		return err
	}
	return h.list(c, func(ctx context.Context, actor services.Principal, filter models.OrderFilter) ([]models.Order, int64, error) {
		return h.svc.PharmacyOrders(ctx, actor, pharmacyID, filter)
	})
}

// GetOrder returns one order to a party of it.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}

	order, err := h.svc.GetOrder(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

// UpdateStatus advances the order and/or reassigns its courier.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}

	var req services.StatusUpdate
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.svc.UpdateStatus(c.UserContext(), actor, id, req)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

type assignDeliveryRequest struct {
	DeliveryPersonID uuid.UUID `json:"deliveryPersonId"`
}

// AssignDelivery sets the courier of an order.
func (h *OrderHandler) AssignDelivery(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}

	var req assignDeliveryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.svc.AssignDeliveryPerson(c.UserContext(), actor, id, req.DeliveryPersonID)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

type instructionsRequest struct {
	Instructions []services.InstructionInput `json:"instructions"`
}

// SetInstructions replaces the preparation notes of a packing order.
func (h *OrderHandler) SetInstructions(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}

	var req instructionsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.svc.SetInstructions(c.UserContext(), actor, id, req.Instructions)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

type listFunc func(ctx context.Context, actor services.Principal, filter models.OrderFilter) ([]models.Order, int64, error)

func (h *OrderHandler) list(c *fiber.Ctx, fetch listFunc) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	filter := models.OrderFilter{Limit: pg.Limit, Offset: pg.Offset}
	if status := models.OrderStatus(c.Query("status")); status != "" {
		if !status.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "invalid status filter")
		}
		filter.Status = status
	}

	orders, total, err := fetch(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}

	utils.SetTotalCount(c, total)
	return c.JSON(newOrderViews(orders))
}

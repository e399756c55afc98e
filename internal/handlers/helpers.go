package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/pharmadrop/internal/middleware"
	"github.com/example/pharmadrop/internal/services"
)

func principal(c *fiber.Ctx) (services.Principal, error) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return services.Principal{}, fiber.NewError(fiber.StatusUnauthorized, "Not authorized")
	}
	return p, nil
}

func paramID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

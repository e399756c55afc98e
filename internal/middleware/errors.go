package middleware

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/pharmadrop/internal/services"
)

// ErrorHandler renders every error as {"message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var orderErr *services.OrderError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &orderErr):
		code = orderErr.Info.Status
		message = orderErr.Error()
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
		message = fiberErr.Message
	default:
		log.Printf("[HTTP] %s %s failed: %v", c.Method(), c.Path(), err)
	}

	return c.Status(code).JSON(fiber.Map{"message": message})
}

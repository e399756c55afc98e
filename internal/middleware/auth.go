package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/pharmadrop/internal/config"
	"github.com/example/pharmadrop/internal/models"
	"github.com/example/pharmadrop/internal/repository"
	"github.com/example/pharmadrop/internal/services"
	"github.com/example/pharmadrop/internal/utils"
)

const principalContextKey = "currentPrincipal"

// UserLookup loads the account behind a token.
type UserLookup interface {
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthMiddleware validates JWT tokens and stores the caller's principal in
// context. The role is read from the user record so role changes apply
// without reissuing tokens.
func AuthMiddleware(cfg *config.Config, users UserLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Not authorized, no token")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "Not authorized, invalid authorization header")
		}

		userID, _, err := utils.ParseToken(cfg.JWTSecret, strings.TrimSpace(parts[1]))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Not authorized, token failed")
		}

		user, err := users.FindUser(c.UserContext(), userID)
		if errors.Is(err, repository.ErrNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "Not authorized, user not found")
		}
		if err != nil {
			return err
		}

		c.Locals(principalContextKey, services.Principal{UserID: user.ID, Role: user.Role})
		return c.Next()
	}
}

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := GetPrincipal(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Not authorized")
		}
		for _, role := range roles {
			if p.Role == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusUnauthorized, "User role "+p.Role+" is not authorized to access this route")
	}
}

// GetPrincipal extracts the authenticated principal from context.
func GetPrincipal(c *fiber.Ctx) (services.Principal, bool) {
	p, ok := c.Locals(principalContextKey).(services.Principal)
	return p, ok
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	p, ok := GetPrincipal(c)
	if !ok {
		return uuid.Nil, false
	}
	return p.UserID, true
}

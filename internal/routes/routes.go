package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/pharmadrop/internal/config"
	"github.com/example/pharmadrop/internal/handlers"
	"github.com/example/pharmadrop/internal/metrics"
	"github.com/example/pharmadrop/internal/middleware"
	"github.com/example/pharmadrop/internal/models"
	"github.com/example/pharmadrop/internal/repository"
	"github.com/example/pharmadrop/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, store repository.Store, orders *services.OrderService, m *metrics.Metrics) {
	authHandler := handlers.NewAuthHandler(db, cfg)
	adminHandler := handlers.NewAdminHandler(db)
	roleRequestHandler := handlers.NewRoleRequestHandler(db)
	pharmacyHandler := handlers.NewPharmacyHandler(db)
	medicineHandler := handlers.NewMedicineHandler(db)
	couponHandler := handlers.NewCouponHandler(db, orders)
	orderHandler := handlers.NewOrderHandler(orders)
	healthHandler := handlers.NewHealthHandler(cfg.AppEnv)

	requireAuth := middleware.AuthMiddleware(cfg, store)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	app.Get("/metrics", m.Handler())

	api := app.Group("/api")
	api.Get("/health", healthHandler.Health)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/logout", requireAuth, authHandler.Logout)
	auth.Get("/profile", requireAuth, authHandler.GetProfile)
	auth.Put("/profile", requireAuth, authHandler.UpdateProfile)

	users := api.Group("/users", requireAuth)
	users.Get("/", adminOnly, adminHandler.ListUsers)
	users.Get("/me", authHandler.GetProfile)

	api.Get("/admin/stats", requireAuth, adminOnly, adminHandler.DashboardStats)

	roleRequestHandler.RegisterRoleRequestRoutes(api.Group("/role-requests", requireAuth))

	// Catalog
	pharmacyHandler.RegisterPharmacyRoutes(api.Group("/pharmacies"), requireAuth)
	medicineHandler.RegisterMedicineRoutes(api.Group("/medicines"), requireAuth)

	couponHandler.RegisterCouponRoutes(api.Group("/coupons", requireAuth))
	orderHandler.RegisterOrderRoutes(api.Group("/orders", requireAuth))
}

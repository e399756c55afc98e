package handlers

import (
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler reports liveness and the mounted route table.
type HealthHandler struct {
	env string
}

// NewHealthHandler constructs HealthHandler.
func NewHealthHandler(env string) *HealthHandler {
	return &HealthHandler{env: env}
}

type routeInfo struct {
	Path    string   `json:"path"`
	Methods []string `json:"methods"`
}

// Health returns status, time, environment and routes.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"env":       h.env,
		"routes":    listRoutes(c.App()),
	})
}

func listRoutes(app *fiber.App) []routeInfo {
	byPath := make(map[string][]string)
	for _, r := range app.GetRoutes(true) {
		if r.Method == fiber.MethodHead {
			continue
		}
		byPath[r.Path] = append(byPath[r.Path], r.Method)
	}

	routes := make([]routeInfo, 0, len(byPath))
	for path, methods := range byPath {
		sort.Strings(methods)
		routes = append(routes, routeInfo{Path: path, Methods: methods})
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
	return routes
}

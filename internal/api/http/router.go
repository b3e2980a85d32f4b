package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/lead-distribution/internal/api/http/handlers"
	"github.com/spec-kit/lead-distribution/internal/auth"
	"github.com/spec-kit/lead-distribution/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Distribution   *handlers.DistributionHandler
	AuthMiddleware *auth.AuthMiddleware
	// Gatherer backs /metrics; nil skips the route.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	managers := auth.RequireStaffRole(domain.StaffRoleAdmin, domain.StaffRoleManager)
	h := cfg.Distribution

	api := app.Group("/api/v1/distribution", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	api.Get("/settings", h.GetSettings)
	api.Put("/settings", managers, h.UpdateSettings)

	assign := api.Group("/assign", managers)
	assign.Post("/manual", h.AssignManual)
	assign.Post("/automatic", h.AssignAutomatic)
	assign.Post("/round-robin", h.AssignRoundRobin)
	assign.Post("/performance-based", h.AssignPerformanceBased)

	api.Post("/run", managers, h.Run)
	api.Post("/round-robin/reseed", managers, h.ReseedRotation)

	api.Get("/leads/unassigned", h.ListUnassigned)
	api.Get("/staff/workload", h.StaffWorkload)
	api.Get("/staff/performance", h.StaffPerformance)
}

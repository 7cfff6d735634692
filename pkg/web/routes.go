package web

import "github.com/gofiber/fiber/v3"

// Routes mounts the run API on router.
func (h *APIHandlers) Routes(router fiber.Router) {
	r := router.Group("/runs")
	r.Get("/", h.GetRuns)
	r.Post("/", h.CreateRun)
	r.Get("/:id", h.GetRun)
	r.Get("/:id/status-reports", h.GetRunStatusReports)

	router.Get("/definition", h.GetDefinition)
	router.Get("/tasks", h.GetTasks)
	router.Get("/health", h.HealthCheck)
}

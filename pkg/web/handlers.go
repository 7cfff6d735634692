// Package web provides the HTTP handlers of the run API.
package web

import (
	"net/http"
	"time"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/registry"
	"github.com/dukex/lakeflow/pkg/services"
	"github.com/gofiber/fiber/v3"
)

const defaultTrigger = "api"

type APIHandlers struct {
	runService *services.Run
	registry   *registry.Registry
}

func NewAPIHandlers(runService *services.Run, registry *registry.Registry) *APIHandlers {
	return &APIHandlers{
		runService: runService,
		registry:   registry,
	}
}

// CreateRunRequest is the body of POST /runs. Both fields are optional.
type CreateRunRequest struct {
	Trigger string         `json:"trigger"`
	Input   map[string]any `json:"input"`
}

// StatusReportsResponse is the body of GET /runs/:id/status-reports.
type StatusReportsResponse struct {
	RunID   string                 `json:"run_id"`
	Reports []*models.StatusReport `json:"reports"`
}

func (h *APIHandlers) CreateRun(c fiber.Ctx) error {
	var req CreateRunRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if req.Trigger == "" {
		req.Trigger = defaultTrigger
	}

	run, err := h.runService.Request(c.Context(), services.RunRequest{
		Trigger: req.Trigger,
		Input:   req.Input,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(run)
}

func (h *APIHandlers) GetRuns(c fiber.Ctx) error {
	runs, err := h.runService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(runs)
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	run, err := h.runService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) GetRunStatusReports(c fiber.Ctx) error {
	id := c.Params("id")

	reports, err := h.runService.StatusReports(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(StatusReportsResponse{RunID: id, Reports: reports})
}

// GetDefinition returns the workflow definition runs execute, as JSON.
func (h *APIHandlers) GetDefinition(c fiber.Ctx) error {
	return c.JSON(h.runService.Definition())
}

// GetTasks lists the registered task factories and their input schemas.
func (h *APIHandlers) GetTasks(c fiber.Ctx) error {
	factories := h.registry.Factories()

	tasks := make([]fiber.Map, 0, len(factories))
	for _, factory := range factories {
		tasks = append(tasks, fiber.Map{
			"id":          factory.ID(),
			"name":        factory.Name(),
			"description": factory.Description(),
			"schema":      factory.Schema(),
		})
	}

	return c.JSON(tasks)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.runService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "lakeflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "lakeflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

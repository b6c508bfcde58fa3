// Package handlers exposes the local HTTP API consumed by the editor
// extension. Handlers stay thin: request parsing and status codes here,
// pipeline semantics in the correlator.
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codetrail/codetrail/internal/correlator"
	"github.com/codetrail/codetrail/internal/models"
)

// ChangesHandler ingests editor change events and manually reported
// interactions.
type ChangesHandler struct {
	correlator *correlator.Correlator
}

// ChangeResponse reports what detection made of a change event.
type ChangeResponse struct {
	Candidates []models.DetectionCandidate `json:"candidates"`
	Detected   bool                        `json:"detected"`
}

func NewChangesHandler(c *correlator.Correlator) *ChangesHandler {
	return &ChangesHandler{correlator: c}
}

// HandleChange classifies a text change event
// @Summary Submit an editor change event for AI detection
// @Description Runs the detection heuristics synchronously and records an interaction per detected provider. Pattern matching only; never blocks on I/O.
// @Tags changes
// @Accept json
// @Produce json
// @Param change body models.ChangeEvent true "Change event"
// @Success 200 {object} ChangeResponse
// @Failure 400 {object} map[string]string
// @Router /v1/changes [post]
func (h *ChangesHandler) HandleChange(c *fiber.Ctx) error {
	var event models.ChangeEvent
	if err := c.BodyParser(&event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid change event: " + err.Error(),
		})
	}
	if event.InsertedText == "" && event.ReplacedLength == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Change event must carry inserted text or a replaced range",
		})
	}

	candidates := h.correlator.HandleChange(event)
	detected := false
	for _, candidate := range candidates {
		if candidate.Detected {
			detected = true
			break
		}
	}
	return c.JSON(ChangeResponse{Candidates: candidates, Detected: detected})
}

// HandleInteraction records a manually reported interaction
// @Summary Record an explicitly reported AI interaction
// @Description Records an interaction the extension observed directly (e.g. a chat exchange), bypassing detection. Missing provider defaults to "other", missing type to "chat".
// @Tags changes
// @Accept json
// @Produce json
// @Param interaction body models.Interaction true "Interaction"
// @Success 201 {object} models.Interaction
// @Failure 400 {object} map[string]string
// @Router /v1/interactions [post]
func (h *ChangesHandler) HandleInteraction(c *fiber.Ctx) error {
	var interaction models.Interaction
	if err := c.BodyParser(&interaction); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid interaction: " + err.Error(),
		})
	}
	if interaction.Prompt == "" && interaction.Response == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Interaction must carry a prompt or a response",
		})
	}

	stored := h.correlator.RecordInteraction(interaction)
	return c.Status(fiber.StatusCreated).JSON(stored)
}

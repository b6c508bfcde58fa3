package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/codetrail/codetrail/internal/correlator"
	"github.com/codetrail/codetrail/internal/models"
	"github.com/codetrail/codetrail/internal/quality"
	"github.com/codetrail/codetrail/internal/session"
)

// SessionsHandler exposes the session store and the manual
// finalization path.
type SessionsHandler struct {
	store      *session.Store
	correlator *correlator.Correlator
}

// FinalizeResponse reports the outcome of a manual correlation.
type FinalizeResponse struct {
	Session *models.DevelopmentSession `json:"session"`
	Message string                     `json:"message,omitempty"`
}

func NewSessionsHandler(store *session.Store, c *correlator.Correlator) *SessionsHandler {
	return &SessionsHandler{store: store, correlator: c}
}

// GetCurrent returns the open session
// @Summary Get the current open session
// @Description Returns a snapshot of the open session, including interactions recorded so far.
// @Tags sessions
// @Produce json
// @Success 200 {object} models.DevelopmentSession
// @Router /v1/sessions/current [get]
func (h *SessionsHandler) GetCurrent(c *fiber.Ctx) error {
	return c.JSON(h.store.Current())
}

// GetHistory returns finalized sessions
// @Summary List finalized sessions
// @Description Returns finalized sessions, most recent last. The optional limit keeps only the most recent N.
// @Tags sessions
// @Produce json
// @Param limit query int false "Maximum number of sessions"
// @Success 200 {array} models.DevelopmentSession
// @Router /v1/sessions/history [get]
func (h *SessionsHandler) GetHistory(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a non-negative integer",
			})
		}
		limit = parsed
	}
	return c.JSON(h.store.History(limit))
}

// GetQuality analyzes the current session
// @Summary Analyze the quality of the current session
// @Description Computes productivity, focus and AI-dependency scores for the open session as-is.
// @Tags sessions
// @Produce json
// @Success 200 {object} models.QualityReport
// @Router /v1/sessions/current/quality [get]
func (h *SessionsHandler) GetQuality(c *fiber.Ctx) error {
	current := h.store.Current()
	return c.JSON(quality.Analyze(&current))
}

// Finalize correlates the open session with HEAD
// @Summary Finalize the current session against the current commit
// @Description Reads HEAD, finalizes the open session with it and queues the archive. Unlike the automatic path, failures are surfaced to the caller.
// @Tags sessions
// @Produce json
// @Success 200 {object} FinalizeResponse
// @Failure 409 {object} map[string]string
// @Router /v1/sessions/finalize [post]
func (h *SessionsHandler) Finalize(c *fiber.Ctx) error {
	finalized, err := h.correlator.CorrelateNow()
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if finalized == nil {
		return c.JSON(FinalizeResponse{
			Message: "No interactions to correlate; session left open",
		})
	}
	return c.JSON(FinalizeResponse{Session: finalized})
}

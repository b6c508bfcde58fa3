package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codetrail/codetrail/internal/correlator"
)

// StatsHandler exposes the automation counters.
type StatsHandler struct {
	correlator *correlator.Correlator
}

func NewStatsHandler(c *correlator.Correlator) *StatsHandler {
	return &StatsHandler{correlator: c}
}

// GetStats returns a fresh counter snapshot
// @Summary Get automation statistics
// @Description Returns the automation counters with a freshly recomputed effectiveness score.
// @Tags stats
// @Produce json
// @Success 200 {object} models.AutomationStats
// @Router /v1/stats [get]
func (h *StatsHandler) GetStats(c *fiber.Ctx) error {
	return c.JSON(h.correlator.Stats())
}

// ResetStats zeroes the counters
// @Summary Reset automation statistics
// @Description Clears all automation counters.
// @Tags stats
// @Produce json
// @Success 200 {object} map[string]string
// @Router /v1/stats/reset [post]
func (h *StatsHandler) ResetStats(c *fiber.Ctx) error {
	h.correlator.ResetStats()
	return c.JSON(fiber.Map{
		"message": "Statistics reset",
	})
}

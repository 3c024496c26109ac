package http

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/gofiber/fiber/v2"

	"visitorstats/internal/reports"
	"visitorstats/internal/timeframe"
)

// DashboardHandler returns the aggregated dashboard payload for the
// requested time range.
func (h *Handler) DashboardHandler(c *fiber.Ctx) error {
	rng, err := resolveRequestRange(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	}

	data, err := reports.BuildDashboard(c.UserContext(), h.db, h.logger, rng)
	if err != nil {
		h.logger.Error("Failed to build dashboard", slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to load dashboard data",
		})
	}

	return c.JSON(data)
}

// ExportCSVHandler streams all visits in the range as a CSV download.
func (h *Handler) ExportCSVHandler(c *fiber.Ctx) error {
	rng, err := resolveRequestRange(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	}

	var buf bytes.Buffer
	if err := reports.WriteCSV(&buf, h.db, rng); err != nil {
		h.logger.Error("Failed to export CSV", slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to export data",
		})
	}

	filename := reports.CSVFilename(time.Now())
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Send(buf.Bytes())
}

func resolveRequestRange(c *fiber.Ctx) (timeframe.Range, error) {
	return timeframe.Resolve(
		c.Query("range", timeframe.RangeToday),
		c.Query("start_date"),
		c.Query("end_date"),
		time.Now(),
	)
}

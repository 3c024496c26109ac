package http

import (
	"net/http"

	"log/slog"

	"github.com/gofiber/fiber/v2"

	"visitorstats/internal/analytics"
	"visitorstats/internal/settings"
)

// GetSettingsHandler returns the current tracker configuration.
func (h *Handler) GetSettingsHandler(c *fiber.Ctx) error {
	current, err := settings.Load(h.db)
	if err != nil {
		h.logger.Error("Failed to load settings", slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to load settings",
		})
	}
	return c.JSON(current)
}

// UpdateSettingsHandler applies a settings update. The body is merged over
// the current values, so partial updates are fine.
func (h *Handler) UpdateSettingsHandler(c *fiber.Ctx) error {
	current, err := settings.Load(h.db)
	if err != nil {
		h.logger.Error("Failed to load settings", slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to load settings",
		})
	}

	if err := c.BodyParser(&current); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid settings payload",
		})
	}

	if err := settings.Save(h.db, current); err != nil {
		h.logger.Error("Failed to save settings", slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to save settings",
		})
	}

	saved, err := settings.Load(h.db)
	if err != nil {
		return c.SendStatus(http.StatusNoContent)
	}
	return c.JSON(saved)
}

// ResetDataHandler deletes all recorded visits and behavior rows.
func (h *Handler) ResetDataHandler(c *fiber.Ctx) error {
	if err := analytics.ResetAll(h.db, h.logger); err != nil {
		h.logger.Error("Failed to reset data", slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to reset data",
		})
	}
	return c.JSON(fiber.Map{"message": "All visitor data deleted"})
}

// RegenerateAPIKeyHandler mints a fresh admin API key, invalidating the
// one used to authenticate this request.
func (h *Handler) RegenerateAPIKeyHandler(c *fiber.Ctx) error {
	key, err := settings.RegenerateAdminAPIKey(h.db)
	if err != nil {
		h.logger.Error("Failed to regenerate API key", slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to regenerate API key",
		})
	}
	return c.JSON(fiber.Map{"api_key": key})
}

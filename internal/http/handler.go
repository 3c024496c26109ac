// Package http holds the admin-facing reporting and settings handlers.
package http

import (
	"log/slog"

	"gorm.io/gorm"

	"visitorstats/internal/config"
)

// Handler carries the shared dependencies for the admin endpoints.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	cfg    *config.Config
}

func NewHandler(db *gorm.DB, logger *slog.Logger, cfg *config.Config) *Handler {
	return &Handler{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}
}

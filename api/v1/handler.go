// Package v1 exposes the public tracking endpoints consumed by the
// client-side snippet. Collector responses are always 202: a tracking
// failure must stay invisible to the visited page.
package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"visitorstats/internal/behavior"
	"visitorstats/internal/config"
	"visitorstats/internal/pkg/clientip"
	"visitorstats/internal/settings"
	"visitorstats/internal/visits"
)

// Handler carries the collector dependencies.
type Handler struct {
	db       *gorm.DB
	logger   *slog.Logger
	cfg      *config.Config
	recorder *visits.Recorder
}

func NewHandler(db *gorm.DB, logger *slog.Logger, cfg *config.Config, recorder *visits.Recorder) *Handler {
	return &Handler{
		db:       db,
		logger:   logger,
		cfg:      cfg,
		recorder: recorder,
	}
}

// CreateVisitParams is the page-view payload sent by the tracking snippet.
type CreateVisitParams struct {
	URL      string `json:"url"`
	Referrer string `json:"referrer"`
}

// CreateVisitHandler records one page view. Sent via navigator.sendBeacon,
// so the body may arrive as text/plain.
func (h *Handler) CreateVisitHandler(c *fiber.Ctx) error {
	var params CreateVisitParams
	if err := c.BodyParser(&params); err != nil {
		h.logger.Debug("Failed to parse visit request", slog.Any("error", err))
		return c.SendStatus(http.StatusAccepted)
	}

	userAgentHeader := c.Get("User-Agent")
	if forwardedUA := c.Get("X-Forwarded-User-Agent"); forwardedUA != "" {
		userAgentHeader = forwardedUA
	}

	referrer := params.Referrer
	if referrer == "" {
		referrer = c.Get("Referer")
	}

	input := &visits.RecordInput{
		IPAddress:  clientip.FromRequest(c),
		UserAgent:  userAgentHeader,
		PageURL:    params.URL,
		Referrer:   referrer,
		SessionID:  c.Cookies(h.cfg.SessionCookieName),
		DoNotTrack: c.Get("DNT") == "1",
		IsHostUser: h.isHostUser(c),
		HasConsent: c.Cookies(h.cfg.ConsentCookieName) == "1",
		Timestamp:  time.Now().UTC(),
	}

	result, err := h.recorder.Record(c.UserContext(), h.db, input)
	if err != nil {
		h.logger.Error("Failed to record visit", slog.Any("error", err))
		return c.SendStatus(http.StatusAccepted)
	}

	if result.NewSession && !result.Skipped {
		c.Cookie(&fiber.Cookie{
			Name:     h.cfg.SessionCookieName,
			Value:    result.SessionID,
			Expires:  time.Now().Add(h.cfg.GetSessionLifetime()),
			HTTPOnly: true,
			SameSite: "Lax",
			Path:     "/",
		})
	}

	if result.Skipped {
		h.logger.Debug("Visit filtered", slog.String("reason", result.SkipReason))
	}

	return c.SendStatus(http.StatusAccepted)
}

// CreateBehaviorParams is the engagement payload sent when the visitor
// leaves a page.
type CreateBehaviorParams struct {
	PageURL     string `json:"pageUrl"`
	TimeOnPage  int    `json:"timeOnPage"`
	ScrollDepth int    `json:"scrollDepth"`
	Clicks      int    `json:"clicks"`
}

// CreateBehaviorHandler records an engagement report for the visitor's
// current session.
func (h *Handler) CreateBehaviorHandler(c *fiber.Ctx) error {
	var params CreateBehaviorParams
	if err := c.BodyParser(&params); err != nil {
		h.logger.Debug("Failed to parse behavior request", slog.Any("error", err))
		return c.SendStatus(http.StatusAccepted)
	}

	sessionID := c.Cookies(h.cfg.SessionCookieName)
	if sessionID == "" {
		// No session means no recorded visit to attach the report to.
		return c.SendStatus(http.StatusAccepted)
	}

	siteCfg, err := settings.Load(h.db)
	if err != nil {
		h.logger.Error("Failed to load settings", slog.Any("error", err))
		return c.SendStatus(http.StatusAccepted)
	}
	if !siteCfg.TrackBehavior {
		return c.SendStatus(http.StatusAccepted)
	}

	input := &behavior.RecordInput{
		SessionID:   sessionID,
		PageURL:     params.PageURL,
		TimeOnPage:  params.TimeOnPage,
		ScrollDepth: params.ScrollDepth,
		Clicks:      params.Clicks,
	}

	if _, err := behavior.Record(h.db, h.logger, input); err != nil {
		h.logger.Error("Failed to record behavior", slog.Any("error", err))
	}

	return c.SendStatus(http.StatusAccepted)
}

// isHostUser reports whether the request carries the hosting site's login
// cookie. Visits from the site's own authenticated users are filtered out.
func (h *Handler) isHostUser(c *fiber.Ctx) bool {
	if h.cfg.HostLoginCookieName == "" {
		return false
	}
	return c.Cookies(h.cfg.HostLoginCookieName) != ""
}

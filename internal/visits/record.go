package visits

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"visitorstats/internal/pkg/geo"
	"visitorstats/internal/pkg/useragent"
	"visitorstats/internal/settings"
)

// RecordInput carries everything the gate sequence needs, extracted from
// the request by the transport layer.
type RecordInput struct {
	IPAddress  string
	UserAgent  string
	PageURL    string
	Referrer   string
	SessionID  string // empty when the visitor carries no session cookie
	DoNotTrack bool
	IsHostUser bool // authenticated user of the hosting site
	HasConsent bool
	Timestamp  time.Time
}

// Skip reasons reported when a visit is filtered out.
const (
	SkipTrackingDisabled = "tracking_disabled"
	SkipHostUser         = "host_user"
	SkipDoNotTrack       = "do_not_track"
	SkipNoConsent        = "no_consent"
	SkipExcludedIP       = "excluded_ip"
	SkipInvalidURL       = "invalid_url"
)

// RecordResult reports what happened to a submitted visit.
type RecordResult struct {
	Visit      *Visit
	SessionID  string // minted when the input carried none
	NewSession bool
	Skipped    bool
	SkipReason string
}

// Recorder runs the visit gate sequence and persists accepted visits.
type Recorder struct {
	logger            *slog.Logger
	geoChain          *geo.Chain
	salt              string
	uniqueWindowHours int
}

func NewRecorder(logger *slog.Logger, geoChain *geo.Chain, salt string, uniqueWindowHours int) *Recorder {
	return &Recorder{
		logger:            logger,
		geoChain:          geoChain,
		salt:              salt,
		uniqueWindowHours: uniqueWindowHours,
	}
}

// Record runs the full gate sequence. The gates short-circuit in a fixed
// order: tracking toggle, host user, DNT, consent, IP exclusion. A filtered
// visit is not an error - the caller stays unaware by design.
func (r *Recorder) Record(ctx context.Context, db *gorm.DB, input *RecordInput) (*RecordResult, error) {
	cfg, err := settings.Load(db)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if !cfg.TrackingEnabled {
		return skipped(SkipTrackingDisabled), nil
	}
	if input.IsHostUser {
		return skipped(SkipHostUser), nil
	}
	if cfg.RespectDNTHeader && input.DoNotTrack {
		return skipped(SkipDoNotTrack), nil
	}
	if cfg.CookieConsentRequired && !input.HasConsent {
		return skipped(SkipNoConsent), nil
	}

	if input.PageURL == "" {
		return skipped(SkipInvalidURL), nil
	}

	excluded, err := settings.IsIPExcluded(input.IPAddress)
	if err != nil {
		r.logger.Error("Error checking IP exclusion", slog.Any("error", err))
	}
	if !excluded {
		// The cache only covers exact matches reliably; re-check CIDR entries
		// against the freshly loaded settings.
		excluded = settings.MatchesExclusion(input.IPAddress, strings.Split(cfg.ExcludedIPs, ","))
	}
	if excluded {
		r.logger.Debug("Skipping visit for excluded IP", slog.String("ip", input.IPAddress))
		return skipped(SkipExcludedIP), nil
	}

	ipHash := input.IPAddress
	if cfg.IPAnonymization {
		ipHash = AnonymizeIP(input.IPAddress, r.salt)
	}

	sessionID := input.SessionID
	newSession := false
	if sessionID == "" {
		sessionID = uuid.NewString()
		newSession = true
	}

	timestamp := input.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	isUnique, err := IsUniqueVisitor(db, sessionID, ipHash, r.uniqueWindowHours, timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to check visitor uniqueness: %w", err)
	}

	ua := useragent.Parse(input.UserAgent)

	var location geo.Location
	if cfg.GeoIPEnabled {
		location = r.geoChain.Lookup(ctx, input.IPAddress)
	}

	visit := &Visit{
		SessionID:       sessionID,
		IPHash:          ipHash,
		PageURL:         truncate(input.PageURL, MaxPageURLLength),
		Referrer:        externalReferrer(input.Referrer, input.PageURL),
		UserAgent:       input.UserAgent,
		Browser:         ua.Browser,
		DeviceType:      ua.Device,
		Country:         location.Country,
		City:            location.City,
		IsUniqueVisitor: isUnique,
		CreatedAt:       timestamp,
	}

	err = sqlite.PerformWrite(r.logger, db, func(tx *gorm.DB) error {
		return tx.Create(visit).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store visit: %w", err)
	}

	return &RecordResult{Visit: visit, SessionID: sessionID, NewSession: newSession}, nil
}

// IsUniqueVisitor reports whether no visit with the same session or IP hash
// exists inside the uniqueness window before timestamp. The check-then-insert
// sequence is not atomic; a concurrent duplicate is an accepted race.
func IsUniqueVisitor(db *gorm.DB, sessionID, ipHash string, windowHours int, timestamp time.Time) (bool, error) {
	windowStart := timestamp.Add(-time.Duration(windowHours) * time.Hour)

	var count int64
	err := db.Model(&Visit{}).
		Where("(session_id = ? OR ip_hash = ?) AND created_at >= ? AND created_at < ?",
			sessionID, ipHash, windowStart, timestamp).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// externalReferrer suppresses same-origin referrers: only off-site sources
// are worth reporting.
func externalReferrer(referrer, pageURL string) string {
	if referrer == "" {
		return ""
	}

	refURL, err := url.Parse(referrer)
	if err != nil || refURL.Hostname() == "" {
		return referrer
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		return referrer
	}

	if strings.EqualFold(refURL.Hostname(), page.Hostname()) {
		return ""
	}
	return referrer
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func skipped(reason string) *RecordResult {
	return &RecordResult{Skipped: true, SkipReason: reason}
}

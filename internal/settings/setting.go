// Package settings stores typed tracker configuration in the database.
package settings

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/cache"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Setting represents a configuration item in the database
type Setting struct {
	ID        uint      `gorm:"primaryKey"`
	Key       string    `gorm:"uniqueIndex;not null"`
	Value     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:milli"`
}

// Setting keys
const (
	KeyTrackingEnabled       = "tracking_enabled"
	KeyIPAnonymization       = "ip_anonymization"
	KeyCookieConsentRequired = "cookie_consent_required"
	KeyDataRetentionDays     = "data_retention_days"
	KeyExcludedIPs           = "excluded_ips"
	KeyExcludedUserRoles     = "excluded_user_roles"
	KeyRespectDNTHeader      = "respect_dnt_header"
	KeyTrackBehavior         = "track_behavior"
	KeyGeoIPEnabled          = "geoip_enabled"
	KeyAutoCleanup           = "auto_cleanup"
	KeySchemaVersion         = "schema_version"
	KeyAdminAPIKey           = "admin_api_key"
)

// SchemaVersion is the current settings schema version.
const SchemaVersion = "2.0"

// Retention bounds in days.
const (
	MinRetentionDays = 1
	MaxRetentionDays = 3650
)

// Settings is the typed view of all tracker configuration.
type Settings struct {
	TrackingEnabled       bool     `json:"tracking_enabled"`
	IPAnonymization       bool     `json:"ip_anonymization"`
	CookieConsentRequired bool     `json:"cookie_consent_required"`
	DataRetentionDays     int      `json:"data_retention_days"`
	ExcludedIPs           string   `json:"excluded_ips"`
	ExcludedUserRoles     []string `json:"excluded_user_roles"`
	RespectDNTHeader      bool     `json:"respect_dnt_header"`
	TrackBehavior         bool     `json:"track_behavior"`
	GeoIPEnabled          bool     `json:"geoip_enabled"`
	AutoCleanup           bool     `json:"auto_cleanup"`
}

// Defaults returns the settings applied on first run.
func Defaults() Settings {
	return Settings{
		TrackingEnabled:       true,
		IPAnonymization:       true,
		CookieConsentRequired: false,
		DataRetentionDays:     365,
		ExcludedIPs:           "",
		ExcludedUserRoles:     []string{"administrator", "editor"},
		RespectDNTHeader:      true,
		TrackBehavior:         true,
		GeoIPEnabled:          true,
		AutoCleanup:           true,
	}
}

var excludedIPsCache *cache.Cache[string, []string]

// SetupDefaultSettings seeds defaults for any missing keys and runs the
// schema version migration. Existing values are never overwritten.
func SetupDefaultSettings(dbConn *gorm.DB) error {
	defaults := Defaults()
	rows := []Setting{
		{Key: KeyTrackingEnabled, Value: formatBool(defaults.TrackingEnabled)},
		{Key: KeyIPAnonymization, Value: formatBool(defaults.IPAnonymization)},
		{Key: KeyCookieConsentRequired, Value: formatBool(defaults.CookieConsentRequired)},
		{Key: KeyDataRetentionDays, Value: strconv.Itoa(defaults.DataRetentionDays)},
		{Key: KeyExcludedIPs, Value: defaults.ExcludedIPs},
		{Key: KeyExcludedUserRoles, Value: marshalRoles(defaults.ExcludedUserRoles)},
		{Key: KeyRespectDNTHeader, Value: formatBool(defaults.RespectDNTHeader)},
		{Key: KeyTrackBehavior, Value: formatBool(defaults.TrackBehavior)},
		{Key: KeyGeoIPEnabled, Value: formatBool(defaults.GeoIPEnabled)},
		{Key: KeyAutoCleanup, Value: formatBool(defaults.AutoCleanup)},
		{Key: KeySchemaVersion, Value: SchemaVersion},
	}
	err := sqlite.PerformWrite(slog.Default(), dbConn, func(tx *gorm.DB) error {
		for _, setting := range rows {
			// Use raw SQL for upsert
			err := tx.Exec(`
                INSERT INTO settings (key, value, created_at, updated_at)
                VALUES (?, ?, ?, ?)
                ON CONFLICT(key) DO NOTHING
            `, setting.Key, setting.Value, time.Now().UTC(), time.Now().UTC()).Error
			if err != nil {
				slog.Default().Error("Failed to upsert setting", slog.String("key", setting.Key), slog.Any("error", err))
				return fmt.Errorf("failed to upsert setting %s: %w", setting.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := migrateSchema(dbConn); err != nil {
		return err
	}

	// Initialize the cache
	loadCache(dbConn, slog.Default())

	return nil
}

// migrateSchema brings settings written by older releases up to the current
// schema. Pre-2.0 installs stored no schema_version row.
func migrateSchema(dbConn *gorm.DB) error {
	version, err := GetSetting(dbConn, KeySchemaVersion)
	if err != nil {
		return err
	}
	if version == SchemaVersion {
		return nil
	}

	// 1.x stored booleans as "1"/"0"; normalize them.
	boolKeys := []string{
		KeyTrackingEnabled, KeyIPAnonymization, KeyCookieConsentRequired,
		KeyRespectDNTHeader, KeyTrackBehavior, KeyGeoIPEnabled, KeyAutoCleanup,
	}
	for _, key := range boolKeys {
		value, err := GetSetting(dbConn, key)
		if err != nil {
			continue
		}
		if value == "1" || value == "0" {
			if err := UpdateSetting(dbConn, key, formatBool(value == "1")); err != nil {
				return err
			}
		}
	}

	return UpdateSetting(dbConn, KeySchemaVersion, SchemaVersion)
}

// Load reads all settings into the typed struct, falling back to defaults
// for missing or malformed values.
func Load(dbConn *gorm.DB) (Settings, error) {
	var rows []Setting
	if err := dbConn.Find(&rows).Error; err != nil {
		return Defaults(), fmt.Errorf("failed to load settings: %w", err)
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}

	s := Defaults()
	s.TrackingEnabled = parseBool(values, KeyTrackingEnabled, s.TrackingEnabled)
	s.IPAnonymization = parseBool(values, KeyIPAnonymization, s.IPAnonymization)
	s.CookieConsentRequired = parseBool(values, KeyCookieConsentRequired, s.CookieConsentRequired)
	s.RespectDNTHeader = parseBool(values, KeyRespectDNTHeader, s.RespectDNTHeader)
	s.TrackBehavior = parseBool(values, KeyTrackBehavior, s.TrackBehavior)
	s.GeoIPEnabled = parseBool(values, KeyGeoIPEnabled, s.GeoIPEnabled)
	s.AutoCleanup = parseBool(values, KeyAutoCleanup, s.AutoCleanup)

	if raw, ok := values[KeyDataRetentionDays]; ok {
		if days, err := strconv.Atoi(raw); err == nil {
			s.DataRetentionDays = clampRetention(days)
		}
	}
	if raw, ok := values[KeyExcludedIPs]; ok {
		s.ExcludedIPs = raw
	}
	if raw, ok := values[KeyExcludedUserRoles]; ok {
		var roles []string
		if err := json.Unmarshal([]byte(raw), &roles); err == nil {
			s.ExcludedUserRoles = roles
		}
	}

	return s, nil
}

// Save persists the full settings struct, sanitizing values first.
func Save(dbConn *gorm.DB, s Settings) error {
	s.DataRetentionDays = clampRetention(s.DataRetentionDays)
	s.ExcludedIPs = sanitizeExcludedIPs(s.ExcludedIPs)
	s.ExcludedUserRoles = sanitizeRoles(s.ExcludedUserRoles)

	updates := map[string]string{
		KeyTrackingEnabled:       formatBool(s.TrackingEnabled),
		KeyIPAnonymization:       formatBool(s.IPAnonymization),
		KeyCookieConsentRequired: formatBool(s.CookieConsentRequired),
		KeyDataRetentionDays:     strconv.Itoa(s.DataRetentionDays),
		KeyExcludedIPs:           s.ExcludedIPs,
		KeyExcludedUserRoles:     marshalRoles(s.ExcludedUserRoles),
		KeyRespectDNTHeader:      formatBool(s.RespectDNTHeader),
		KeyTrackBehavior:         formatBool(s.TrackBehavior),
		KeyGeoIPEnabled:          formatBool(s.GeoIPEnabled),
		KeyAutoCleanup:           formatBool(s.AutoCleanup),
	}
	for key, value := range updates {
		if err := CreateOrUpdateSetting(dbConn, key, value); err != nil {
			return err
		}
	}
	return nil
}

// IsIPExcluded reports whether ip matches any entry of the excluded_ips
// setting. Entries may be exact addresses or CIDR ranges.
func IsIPExcluded(ip string) (bool, error) {
	// If the cache isn't initialized yet, return false
	if excludedIPsCache == nil {
		return false, nil
	}

	excludedIPs, err := excludedIPsCache.Get(KeyExcludedIPs)
	if err != nil {
		return false, fmt.Errorf("failed to check excluded IPs: %w", err)
	}

	return MatchesExclusion(ip, excludedIPs), nil
}

// MatchesExclusion checks ip against a list of exact addresses and CIDR ranges.
func MatchesExclusion(ip string, entries []string) bool {
	addr, addrErr := netip.ParseAddr(ip)
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if entry == ip {
			return true
		}
		if strings.Contains(entry, "/") && addrErr == nil {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				continue
			}
			if prefix.Contains(addr.Unmap()) {
				return true
			}
		}
	}
	return false
}

// GetSetting retrieves a setting value from the database
func GetSetting(dbConn *gorm.DB, key string) (string, error) {
	var setting Setting
	result := dbConn.Where("key = ?", key).First(&setting)

	if result.Error != nil {
		return "", result.Error
	}

	return setting.Value, nil
}

// UpdateSetting updates a setting in the database using a transaction
func UpdateSetting(dbConn *gorm.DB, key string, value string) error {
	// Start a transaction
	tx := dbConn.Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	// Ensure we either commit or rollback
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// Update the setting within the transaction
	result := tx.Model(&Setting{}).Where("key = ?", key).Update("value", value)
	if result.Error != nil {
		tx.Rollback()
		return fmt.Errorf("failed to update setting: %w", result.Error)
	}

	// If no rows were affected, the setting might not exist - try to create it
	if result.RowsAffected == 0 {
		setting := Setting{
			Key:   key,
			Value: value,
		}
		if err := tx.Create(&setting).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to create setting: %w", err)
		}
	}

	// Commit the transaction
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Clear and reload the cache after successful update
	if excludedIPsCache != nil {
		excludedIPsCache.Clear()
	}
	loadCache(dbConn, slog.Default())

	return nil
}

// CreateOrUpdateSetting creates a new setting or updates an existing one
func CreateOrUpdateSetting(dbConn *gorm.DB, key string, value string) error {
	// Check if the setting exists
	var count int64
	if err := dbConn.Model(&Setting{}).Where("key = ?", key).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check if setting exists: %w", err)
	}

	if count > 0 {
		return UpdateSetting(dbConn, key, value)
	}
	setting := Setting{
		Key:   key,
		Value: value,
	}
	if err := dbConn.Create(&setting).Error; err != nil {
		return fmt.Errorf("failed to create setting: %w", err)
	}
	return nil
}

func loadCache(dbConn *gorm.DB, logger *slog.Logger) {
	fetchFunc := func(key string) ([]string, error) {
		var value string
		err := dbConn.WithContext(context.Background()).Raw("SELECT value FROM settings WHERE key = ? LIMIT 1", key).Scan(&value).Error
		if err != nil {
			return nil, err
		}
		// Comma-separated list of IPs and CIDR ranges
		excludedIPs := strings.Split(value, ",")
		for i, ip := range excludedIPs {
			excludedIPs[i] = strings.TrimSpace(ip)
		}
		return excludedIPs, nil
	}
	excludedIPsCache = cache.NewCache[string, []string](logger, 5*time.Minute, fetchFunc)
}

// GetAdminAPIKey retrieves the admin API key
func GetAdminAPIKey(db *gorm.DB) (string, error) {
	return GetSetting(db, KeyAdminAPIKey)
}

// GetOrCreateAdminAPIKey returns the existing API key or generates a new one
func GetOrCreateAdminAPIKey(db *gorm.DB) (string, error) {
	key, err := GetAdminAPIKey(db)
	if err == nil && key != "" {
		return key, nil
	}
	return RegenerateAdminAPIKey(db)
}

// RegenerateAdminAPIKey creates a new random API key, replacing any old one
func RegenerateAdminAPIKey(db *gorm.DB) (string, error) {
	key := generateRandomToken(32)
	if err := CreateOrUpdateSetting(db, KeyAdminAPIKey, key); err != nil {
		return "", err
	}
	return key, nil
}

// generateRandomToken creates a cryptographically secure random token
func generateRandomToken(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[randInt(len(charset))]
	}
	return string(b)
}

// randInt returns a cryptographically secure random int in [0, max)
func randInt(max int) int {
	var buf [1]byte
	_, _ = rand.Read(buf[:])
	return int(buf[0]) % max
}

func clampRetention(days int) int {
	if days < MinRetentionDays {
		return MinRetentionDays
	}
	if days > MaxRetentionDays {
		return MaxRetentionDays
	}
	return days
}

func sanitizeExcludedIPs(raw string) string {
	// Newline-separated input is accepted; stored form is comma-joined.
	raw = strings.ReplaceAll(raw, "\n", ",")
	parts := strings.Split(raw, ",")
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			if _, err := netip.ParsePrefix(part); err != nil {
				continue
			}
		} else if _, err := netip.ParseAddr(part); err != nil {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, ",")
}

func sanitizeRoles(roles []string) []string {
	seen := make(map[string]bool, len(roles))
	kept := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" || seen[role] {
			continue
		}
		seen[role] = true
		kept = append(kept, role)
	}
	return kept
}

func marshalRoles(roles []string) string {
	data, _ := json.Marshal(roles)
	return string(data)
}

func formatBool(v bool) string {
	return strconv.FormatBool(v)
}

func parseBool(values map[string]string, key string, fallback bool) bool {
	raw, ok := values[key]
	if !ok {
		return fallback
	}
	switch raw {
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		return fallback
	}
}

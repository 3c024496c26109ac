// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`

	// Visitor session settings
	SessionCookieName   string `mapstructure:"sessioncookiename"`
	SessionLifetimeDays int    `mapstructure:"sessionlifetimedays"`
	ConsentCookieName   string `mapstructure:"consentcookiename"`
	HostLoginCookieName string `mapstructure:"hostlogincookiename"`
	UniqueWindowHours   int    `mapstructure:"uniquewindowhours"`

	// File paths
	DatabasePath string `mapstructure:"storagepath"`
	DatabaseName string `mapstructure:"-"` // Derived from other settings
	GeoDBPath    string `mapstructure:"geodbpath"`

	// Geolocation provider settings
	GeoProviderTimeoutSeconds int `mapstructure:"geoprovidertimeoutseconds"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Cleanup job schedule (cron expression, server timezone)
	CleanupSchedule string `mapstructure:"cleanupschedule"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "visitorstats")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", "88888888888888888888888888888888")
		v.SetDefault("sessioncookiename", "visitorstats_session")
		v.SetDefault("sessionlifetimedays", 30)
		v.SetDefault("consentcookiename", "visitorstats_consent")
		v.SetDefault("hostlogincookiename", "")
		v.SetDefault("uniquewindowhours", 24)
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "")
		v.SetDefault("geoprovidertimeoutseconds", 3)
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("cleanupschedule", "0 2 * * *")

		v.BindEnv("appname", "VISITORSTATS_APP_NAME")
		v.BindEnv("appport", "VISITORSTATS_APP_PORT")
		v.BindEnv("environment", "VISITORSTATS_ENV")
		v.BindEnv("loglevel", "VISITORSTATS_LOG_LEVEL")
		v.BindEnv("privatekey", "VISITORSTATS_PRIVATE_KEY")
		v.BindEnv("sessioncookiename", "VISITORSTATS_SESSION_COOKIE_NAME")
		v.BindEnv("sessionlifetimedays", "VISITORSTATS_SESSION_LIFETIME_DAYS")
		v.BindEnv("consentcookiename", "VISITORSTATS_CONSENT_COOKIE_NAME")
		v.BindEnv("hostlogincookiename", "VISITORSTATS_HOST_LOGIN_COOKIE_NAME")
		v.BindEnv("uniquewindowhours", "VISITORSTATS_UNIQUE_WINDOW_HOURS")
		v.BindEnv("storagepath", "VISITORSTATS_STORAGE_PATH")
		v.BindEnv("geodbpath", "VISITORSTATS_GEO_DB_PATH")
		v.BindEnv("geoprovidertimeoutseconds", "VISITORSTATS_GEO_PROVIDER_TIMEOUT_SECONDS")
		v.BindEnv("logsdir", "VISITORSTATS_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "VISITORSTATS_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "VISITORSTATS_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "VISITORSTATS_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbmaxopenconns", "VISITORSTATS_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "VISITORSTATS_DB_MAX_IDLE_CONNS")
		v.BindEnv("cleanupschedule", "VISITORSTATS_CLEANUP_SCHEDULE")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		// Set derived values
		cfg.DatabaseName = cfg.GetDatabasePath()

		// Validate private key - in production, must be explicitly set (not empty, not default)
		defaultKey := "88888888888888888888888888888888"
		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultKey {
			log.Fatal("Production requires a unique VISITORSTATS_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.SessionLifetimeDays < 1 {
		return fmt.Errorf("invalid session lifetime: %d days", c.SessionLifetimeDays)
	}

	if c.UniqueWindowHours < 1 {
		return fmt.Errorf("invalid unique visitor window: %d hours", c.UniqueWindowHours)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment.
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1 (required for test stability on a shared in-memory database)
// - Development/Production: 10 (allows concurrent reads for parallel dashboard queries)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment.
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetSessionLifetime returns the visitor session cookie lifetime.
func (c *Config) GetSessionLifetime() time.Duration {
	return time.Duration(c.SessionLifetimeDays) * 24 * time.Hour
}

// GetGeoProviderTimeout returns the per-provider lookup timeout.
func (c *Config) GetGeoProviderTimeout() time.Duration {
	return time.Duration(c.GeoProviderTimeoutSeconds) * time.Second
}

// GetLogLevel returns the log level as a string.
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}

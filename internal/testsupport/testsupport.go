// Package testsupport provides shared database and fixture helpers for tests.
package testsupport

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"visitorstats/internal/behavior"
	"visitorstats/internal/settings"
	"visitorstats/internal/visits"
)

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// allModels returns all models for migration
func allModels() []any {
	return []any{
		&cache.CacheRecord{},
		&settings.Setting{},
		&visits.Visit{},
		&behavior.Behavior{},
	}
}

// SetupTestDB creates a test database with all models migrated.
// Uses a named in-memory database with cache=shared to allow multiple
// connections to share the same database within a test. Caches the database
// by test name so multiple calls within the same test return the same one.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testName := t.Name()

	// Use root test name for caching to handle closure issues where
	// setup functions capture the outer t while t.Run has subtest t
	rootName := testName
	if idx := strings.Index(testName, "/"); idx > 0 {
		rootName = testName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// GetLogger returns a test logger that discards output
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateTestVisit inserts a visit directly, bypassing the gate sequence.
func CreateTestVisit(t *testing.T, db *gorm.DB, sessionID, pageURL string, timestamp time.Time, opts ...func(*visits.Visit)) visits.Visit {
	t.Helper()

	visit := visits.Visit{
		SessionID:       sessionID,
		IPHash:          "hash-" + sessionID,
		PageURL:         pageURL,
		UserAgent:       "Mozilla/5.0 Test Browser",
		Browser:         "Chrome",
		DeviceType:      "Desktop",
		Country:         "Germany",
		IsUniqueVisitor: false,
		CreatedAt:       timestamp,
	}
	for _, opt := range opts {
		opt(&visit)
	}
	if err := db.Create(&visit).Error; err != nil {
		t.Fatalf("testsupport: failed to create visit: %v", err)
	}
	return visit
}

// CreateTestBehavior inserts a behavior row directly.
func CreateTestBehavior(t *testing.T, db *gorm.DB, sessionID, pageURL string, timeOnPage int, timestamp time.Time) behavior.Behavior {
	t.Helper()

	row := behavior.Behavior{
		SessionID:   sessionID,
		PageURL:     pageURL,
		TimeOnPage:  timeOnPage,
		ScrollDepth: 50,
		CreatedAt:   timestamp,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("testsupport: failed to create behavior row: %v", err)
	}
	return row
}

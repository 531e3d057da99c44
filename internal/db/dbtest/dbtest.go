// Package dbtest opens isolated, migrated in-memory databases for tests.
package dbtest

import (
	"regexp"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"formulary/internal/db"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// Open returns a fresh sqlite database named after the running test. The
// pool is limited to one connection, so queries issued while a transaction
// is open must use the transaction handle.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := db.GormConfig()
	cfg.Logger = logger.Default.LogMode(logger.Silent)

	dsn := "file:" + unsafeChars.ReplaceAllString(t.Name(), "_") + "?mode=memory&cache=shared"
	database, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(database); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return database
}

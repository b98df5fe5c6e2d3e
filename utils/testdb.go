package utils

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CreateTempDB opens a fresh in-memory database with the full schema
// migrated. Each call gets its own database, so tests never see each other's
// rows.
func CreateTempDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open temp db: %v", err)
	}
	if err := DatabaseSetupAndMigration(db); err != nil {
		t.Fatalf("migrate temp db: %v", err)
	}
	return db
}

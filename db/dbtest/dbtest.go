// Package dbtest opens throwaway in-memory databases for tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/szabolcsnagy0/kindly/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated SQLite database seeded with the default request types.
// A single connection is kept open so transactions serialize like row locks would.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	return open(t, true)
}

// NewEmpty is New without seeded request types.
func NewEmpty(t testing.TB) *gorm.DB {
	t.Helper()
	return open(t, false)
}

func open(t testing.TB, seed bool) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(logger.Default.LogMode(logger.Silent)))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if seed {
		if _, err := db.SeedRequestTypes(conn); err != nil {
			t.Fatalf("seed request types: %v", err)
		}
	}
	return conn
}

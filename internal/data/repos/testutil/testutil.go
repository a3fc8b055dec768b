package testutil

import (
	"os"
	"strings"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	appdb "github.com/lifeapp/lifecycle-backend/internal/data/db"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
)

// memoryDSN is one in-memory database shared by every connection of the process.
const memoryDSN = "file::memory:?cache=shared"

var (
	dbOnce sync.Once
	db     *gorm.DB
	dbErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.NewNop()
}

// DB opens the shared test database. TEST_POSTGRES_DSN selects postgres and
// TEST_SQLITE_DSN a sqlite file; otherwise an in-memory sqlite database is used.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		cfg := &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		}
		var dialector gorm.Dialector
		isSQLite := true
		switch {
		case strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN")) != "":
			dialector = postgres.Open(os.Getenv("TEST_POSTGRES_DSN"))
			isSQLite = false
		case strings.TrimSpace(os.Getenv("TEST_SQLITE_DSN")) != "":
			dialector = sqlite.Open(os.Getenv("TEST_SQLITE_DSN"))
		default:
			dialector = sqlite.Open(memoryDSN)
		}
		var err error
		db, err = gorm.Open(dialector, cfg)
		if err != nil {
			dbErr = err
			return
		}
		if isSQLite {
			// A single connection keeps the in-memory database alive and
			// serializes the per-test transactions.
			sqlDB, err := db.DB()
			if err != nil {
				dbErr = err
				return
			}
			sqlDB.SetMaxOpenConns(1)
		}
		if err := appdb.AutoMigrateAll(db); err != nil {
			dbErr = err
			return
		}
		dbErr = appdb.EnsureLifecycleIndexes(db)
	})

	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return db
}

// Tx opens a transaction rolled back at test cleanup.
func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

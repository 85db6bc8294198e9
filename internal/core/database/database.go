// Package database opens the order store connection.
package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"smm-orders/internal/core/config"
	"smm-orders/internal/core/httpclient"
	"smm-orders/internal/core/logger"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SQLiteBusyTimeout is how long a sqlite writer waits for the write lock.
// It must exceed httpclient.DefaultTimeout: a start transaction stays open
// for one provider call.
const SQLiteBusyTimeout = httpclient.DefaultTimeout + 5*time.Second

// sqlitePragmas are appended to the sqlite DSN unless already set. WAL keeps
// readers off the write lock; immediate transactions take the lock at BEGIN
// so waiting writers go through the busy handler.
var sqlitePragmas = [][2]string{
	{"_busy_timeout", strconv.FormatInt(SQLiteBusyTimeout.Milliseconds(), 10)},
	{"_journal_mode", "WAL"},
	{"_txlock", "immediate"},
}

// Open connects to the configured driver. SQL statements are logged through
// zap at warn level and above, slow queries included.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(SQLiteDSN(cfg.DSN))
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(
			zap.NewStdLog(logger.Named("gorm")),
			gormlogger.Config{
				SlowThreshold:             500 * time.Millisecond,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	return db, nil
}

// SQLiteDSN adds the locking pragmas to dsn, keeping any value the caller set.
func SQLiteDSN(dsn string) string {
	var b strings.Builder
	b.WriteString(dsn)

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range sqlitePragmas {
		if strings.Contains(dsn, p[0]+"=") {
			continue
		}
		b.WriteString(sep + p[0] + "=" + p[1])
		sep = "&"
	}
	return b.String()
}

// Migrate creates or updates the tables of the given models.
func Migrate(db *gorm.DB, models ...any) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package db

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"callstats/internal/config"
)

// Connect opens a GORM connection to the PostgreSQL database named by the
// config and applies the pool settings. It does not migrate; call Migrate.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is required (PostgreSQL URL)")
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil, errors.New("DATABASE_URL must be a postgres:// or postgresql:// URL")
	}

	// PrepareStmt: true prevents the GORM postgres migrator from forcing simple protocol
	// for "SELECT * FROM table LIMIT 1", which would otherwise trigger "insufficient arguments".
	return Open(postgres.Open(cfg.DSN()), cfg, &gorm.Config{PrepareStmt: true})
}

// Open opens dialector with driver error translation enabled and sizes the
// connection pool from cfg. Tests use it with a SQLite dialector.
func Open(dialector gorm.Dialector, cfg *config.Config, gcfg *gorm.Config) (*gorm.DB, error) {
	if gcfg == nil {
		gcfg = &gorm.Config{}
	}
	gcfg.TranslateError = true
	if gcfg.Logger == nil {
		gcfg.Logger = newGormLogger(cfg.LogLevel)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBPoolSize > 0 {
		sqlDB.SetMaxOpenConns(cfg.DBPoolSize)
		sqlDB.SetMaxIdleConns(cfg.DBPoolSize)
	}
	if cfg.DBPoolRecycle > 0 {
		sqlDB.SetConnMaxLifetime(cfg.DBPoolRecycle)
	}
	return db, nil
}

// Migrate creates or updates the api_calls and users tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&APICall{}, &User{})
}

// Ping checks connectivity with a round trip on a pooled connection.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ServerInfo is the result of the PostgreSQL connectivity probe.
type ServerInfo struct {
	CurrentTime time.Time
	PgVersion   string
}

// ProbeServer asks the server for its clock and version string.
func ProbeServer(ctx context.Context, db *gorm.DB) (ServerInfo, error) {
	var info ServerInfo
	err := db.WithContext(ctx).
		Raw("SELECT NOW() AS current_time, version() AS pg_version").
		Scan(&info).Error
	return info, err
}

func newGormLogger(level string) gormlogger.Interface {
	lvl := gormlogger.Warn
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = gormlogger.Info
	case "ERROR", "CRITICAL":
		lvl = gormlogger.Error
	}
	return gormlogger.New(log.New(os.Stderr, "\r\n", log.LstdFlags), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
	})
}

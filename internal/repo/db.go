// Package repo contains the persistence layer: a GORM-backed SQLite store for
// user accounts and a Redis-backed store for all conversation state (partner
// lists, unread counters, room histories, public keys, idempotency marks).
// Functions take explicit handles so services stay trivial to fake in tests.
package repo

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/avoren/go-messenger-backend/internal/domain"
)

// OpenSQLite opens (or creates) the account database at path, applies
// concurrency-friendly PRAGMAs, configures the connection pool, installs the
// OpenTelemetry plugin, and migrates the schema.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path,
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access underlying sql.DB: %w", err)
	}
	// SQLite tolerates one writer; keep the pool small.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("install otel plugin: %w", err)
	}

	if err := db.AutoMigrate(&domain.User{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

// NewRedisClient builds a go-redis client for the chat state store.
// Callers should Ping it at startup to fail fast on misconfiguration.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

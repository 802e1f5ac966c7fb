package database

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver used by migrations
	"go.uber.org/zap"
)

const (
	defaultMaxConnections  = 25
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
	connectTimeout         = 10 * time.Second
)

// DB wraps a pgxpool connection pool holding the catalog.
type DB struct {
	*pgxpool.Pool
}

// Config holds database connection configuration.
// Zero values fall back to the defaults above.
type Config struct {
	URL             string
	MaxConnections  int32
	MinConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ApplicationName string // Reported in pg_stat_activity
}

// NewConnection creates a connection pool and verifies it with a ping.
// Connecting gives up after connectTimeout even if ctx has no deadline.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cmp.Or(cfg.MaxConnections, defaultMaxConnections)
	poolConfig.MinConns = min(cfg.MinConnections, poolConfig.MaxConns)
	poolConfig.MaxConnLifetime = cmp.Or(cfg.MaxConnLifetime, defaultMaxConnLifetime)
	poolConfig.MaxConnIdleTime = cmp.Or(cfg.MaxConnIdleTime, defaultMaxConnIdleTime)
	if cfg.ApplicationName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate opens a short-lived database/sql connection and applies the
// embedded migrations through it.
func Migrate(url string, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer sqlDB.Close()

	return RunMigrations(sqlDB, logger)
}

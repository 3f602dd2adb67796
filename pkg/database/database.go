// Package database owns the PostgreSQL pool behind document persistence.
// The pool opens lazily; Start pings it with retries and exposes readiness.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/cenkalti/backoff/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/JaimeStill/tally/pkg/lifecycle"
)

// pingAttempts bounds the startup ping. Each attempt gets the full
// connection timeout.
const pingAttempts = 5

// System manages the connection pool and its readiness.
type System interface {
	Connection() *sql.DB
	Ready() bool
	// Register exposes pool statistics on reg under the go_sql_* metrics.
	Register(reg prometheus.Registerer) error
	// Start registers startup and shutdown hooks with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
}

type database struct {
	conn        *sql.DB
	name        string
	logger      *slog.Logger
	connTimeout time.Duration
	ready       atomic.Bool
}

// New opens the pool and applies the pool limits from cfg. Statements are
// traced through the global tracer provider. No connection is made until
// Start runs.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	db, err := otelsql.Open("pgx", cfg.Dsn(),
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL, semconv.DBName(cfg.Name)),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &database{
		conn:        db,
		name:        cfg.Name,
		logger:      logger.With("system", "database", "db", cfg.Name),
		connTimeout: cfg.ConnTimeoutDuration(),
	}, nil
}

func (d *database) Connection() *sql.DB {
	return d.conn
}

func (d *database) Ready() bool {
	return d.ready.Load()
}

func (d *database) Register(reg prometheus.Registerer) error {
	if err := reg.Register(collectors.NewDBStatsCollector(d.conn, d.name)); err != nil {
		return fmt.Errorf("register pool stats: %w", err)
	}
	return nil
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	lc.Track("database", d)

	lc.OnStartup(func() {
		if err := d.ping(lc.Context()); err != nil {
			d.logger.Error("database unreachable", "error", err, "attempts", pingAttempts)
			return
		}
		d.ready.Store(true)
		d.logger.Info("database connection established")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		d.ready.Store(false)

		if err := d.conn.Close(); err != nil {
			d.logger.Error("database close failed", "error", err)
			return
		}
		d.logger.Info("database connection closed")
	})

	return nil
}

func (d *database) ping(ctx context.Context) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, d.connTimeout)
		defer cancel()

		if err := d.conn.PingContext(pingCtx); err != nil {
			d.logger.Warn("database ping failed", "attempt", attempt, "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithMaxTries(pingAttempts))
	return err
}

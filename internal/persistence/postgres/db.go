package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Pool sizing: 30 steady-state connections covers the orchestrator's
// default per-exchange semaphore(10) times the handful of exchanges
// typically running sync concurrently; burst to 200 absorbs a cold-start
// register_contracts sweep across all 15 venues at once.
const (
	steadyPoolSize = 30
	burstPoolSize  = 200
	connMaxLife    = 30 * time.Minute
	connMaxIdle    = 5 * time.Minute
)

// Open connects to Postgres via lib/pq and applies the funding tracker's
// pool sizing.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(burstPoolSize)
	db.SetMaxIdleConns(steadyPoolSize)
	db.SetConnMaxLifetime(connMaxLife)
	db.SetConnMaxIdleTime(connMaxIdle)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

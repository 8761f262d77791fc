// Package fundingconfig resolves the funding tracker's runtime settings:
// CLI flags (spf13/pflag) override environment variables, which override
// built-in defaults. Grounded on the original runtime.py/cli.py/settings.py
// precedence and forced-UTC startup behavior.
package fundingconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// Config is the fully-resolved runtime configuration for one tracker
// instance.
type Config struct {
	DBConnection string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	InstanceID     int
	TotalInstances int

	DefaultConcurrency int
	LogLevel           string
	HealthAddr         string
}

// Load builds Config from CLI flags (highest precedence), then
// environment variables, then defaults. DB_CONNECTION is required; its
// absence from both flag and env is fatal, matching the original's
// refusal to start without a database target.
func Load(args []string) (*Config, error) {
	// The tracker always runs in UTC regardless of host timezone, so
	// every "funding interval elapsed" comparison is unambiguous.
	os.Setenv("TZ", "UTC")
	time.Local = time.UTC

	fs := pflag.NewFlagSet("fundingtracker", pflag.ContinueOnError)
	dbConn := fs.String("db-connection", "", "Postgres DSN (overrides DB_CONNECTION)")
	redisAddr := fs.String("redis-addr", "", "Redis address (overrides REDIS_ADDR)")
	redisPassword := fs.String("redis-password", "", "Redis password (overrides REDIS_PASSWORD)")
	redisDB := fs.Int("redis-db", -1, "Redis DB index (overrides REDIS_DB)")
	instanceID := fs.Int("instance-id", -1, "This instance's shard index (overrides INSTANCE_ID)")
	totalInstances := fs.Int("total-instances", -1, "Total tracker instances (overrides TOTAL_INSTANCES)")
	concurrency := fs.Int("concurrency", -1, "Per-exchange sync/update concurrency (overrides CONCURRENCY)")
	logLevel := fs.String("log-level", "", "zerolog level (overrides LOG_LEVEL)")
	healthAddr := fs.String("health-addr", "", "Debug/health HTTP listen address (overrides HEALTH_ADDR)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	cfg := &Config{
		DBConnection:       firstNonEmpty(*dbConn, os.Getenv("DB_CONNECTION")),
		RedisAddr:          firstNonEmpty(*redisAddr, os.Getenv("REDIS_ADDR"), "localhost:6379"),
		RedisPassword:      firstNonEmpty(*redisPassword, os.Getenv("REDIS_PASSWORD")),
		RedisDB:            firstNonNegativeInt(*redisDB, envInt("REDIS_DB", 0)),
		InstanceID:         firstNonNegativeInt(*instanceID, envInt("INSTANCE_ID", 0)),
		TotalInstances:     firstPositiveInt(*totalInstances, envInt("TOTAL_INSTANCES", 1)),
		DefaultConcurrency: firstPositiveInt(*concurrency, envInt("CONCURRENCY", 10)),
		LogLevel:           firstNonEmpty(*logLevel, os.Getenv("LOG_LEVEL"), "info"),
		HealthAddr:         firstNonEmpty(*healthAddr, os.Getenv("HEALTH_ADDR"), ":8090"),
	}

	if cfg.DBConnection == "" {
		return nil, fmt.Errorf("fundingconfig: DB_CONNECTION is required (flag --db-connection or env DB_CONNECTION)")
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonNegativeInt(values ...int) int {
	for _, v := range values {
		if v >= 0 {
			return v
		}
	}
	return 0
}

func firstPositiveInt(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

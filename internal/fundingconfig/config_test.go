package fundingconfig

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DB_CONNECTION", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"INSTANCE_ID", "TOTAL_INSTANCES", "CONCURRENCY", "LOG_LEVEL", "HEALTH_ADDR",
	} {
		old, had := os.LookupEnv(key)
		os.Unsetenv(key)
		t.Cleanup(func() {
			if had {
				os.Setenv(key, old)
			}
		})
	}
}

func TestLoad_MissingDBConnectionIsFatal(t *testing.T) {
	clearEnv(t)
	_, err := Load(nil)
	assert.Error(t, err)
}

func TestLoad_FlagsOverrideEnvOverrideDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("DB_CONNECTION", "postgres://env")
	os.Setenv("REDIS_ADDR", "env-redis:6379")

	cfg, err := Load([]string{"--redis-addr=flag-redis:6379"})

	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.DBConnection)
	assert.Equal(t, "flag-redis:6379", cfg.RedisAddr, "flag must win over env")
	assert.Equal(t, "info", cfg.LogLevel, "falls back to default when neither flag nor env set")
	assert.Equal(t, 1, cfg.TotalInstances)
	assert.Equal(t, 10, cfg.DefaultConcurrency)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	clearEnv(t)
	os.Setenv("DB_CONNECTION", "postgres://env")
	os.Setenv("TOTAL_INSTANCES", "4")
	os.Setenv("INSTANCE_ID", "2")

	cfg, err := Load(nil)

	require.NoError(t, err)
	assert.Equal(t, 4, cfg.TotalInstances)
	assert.Equal(t, 2, cfg.InstanceID)
}

func TestLoad_ForcesUTC(t *testing.T) {
	clearEnv(t)
	os.Setenv("DB_CONNECTION", "postgres://env")

	_, err := Load(nil)

	require.NoError(t, err)
	assert.Equal(t, "UTC", os.Getenv("TZ"))
}

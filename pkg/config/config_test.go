package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wehubfusion/Heartcore/pkg/concurrency"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heartcore.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// unsetenv clears name for the duration of the test.
func unsetenv(t *testing.T, name string) {
	t.Helper()
	t.Setenv(name, "")
	require.NoError(t, os.Unsetenv(name))
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 30*time.Second, cfg.Heartcore.Timeout)
	assert.Equal(t, concurrency.DefaultThrottleLimit, cfg.Throttle.Limit)
	assert.Equal(t, concurrency.DefaultThrottleInterval, cfg.Throttle.Interval)
	assert.GreaterOrEqual(t, cfg.Throttle.MaxConcurrent, 1)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Sentry.Enabled())
	assert.Equal(t, "development", cfg.Sentry.Environment)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
heartcore:
  project_alias: demo
  api_key: secret
  server: euwest01
  timeout: 5s
throttle:
  limit: 10
  interval: 500ms
  max_concurrent: 4
store:
  backend: redis
  redis:
    addr: localhost:6379
    ttl: 1h
tracing:
  enabled: true
  sample_ratio: 0.25
log:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	creds := cfg.Heartcore.Credentials()
	assert.Equal(t, "demo", creds.ProjectAlias)
	assert.Equal(t, "secret", creds.APIKey)
	assert.Equal(t, "euwest01", creds.Server)
	assert.Equal(t, 5*time.Second, cfg.Heartcore.Timeout)

	assert.Equal(t, concurrency.ThrottleConfig{Limit: 10, Interval: 500 * time.Millisecond}, cfg.Throttle.Policy())
	assert.Equal(t, 4, cfg.Throttle.MaxConcurrent)

	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL)
	assert.Equal(t, "heartcore:location:", cfg.Store.Redis.Prefix)

	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRatio)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
heartcore:
  project_alias: from-file
throttle:
  limit: 10
`)
	t.Setenv("HEARTCORE_PROJECT_ALIAS", "from-env")
	t.Setenv("HEARTCORE_THROTTLE_LIMIT", "7")
	t.Setenv("HEARTCORE_TIMEOUT", "2s")
	t.Setenv("HEARTCORE_USE_DELIVERY", "yes")
	t.Setenv("TRACING_SAMPLE_RATIO", "0.5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Heartcore.ProjectAlias)
	assert.Equal(t, 7, cfg.Throttle.Limit)
	assert.Equal(t, 2*time.Second, cfg.Heartcore.Timeout)
	assert.True(t, cfg.Heartcore.UseDelivery)
	assert.Equal(t, 0.5, cfg.Tracing.SampleRatio)
}

func TestLoadEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("SENTRY_DSN=https://key@sentry.example/1\n"), 0o600))
	t.Setenv("ENV_FILE", envFile)
	unsetenv(t, "SENTRY_DSN")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Sentry.Enabled())
	assert.Equal(t, "https://key@sentry.example/1", cfg.Sentry.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "heartcore: [unterminated"))
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"unknown backend", "store:\n  backend: s3\n", "store.backend"},
		{"nats without url", "store:\n  backend: nats\n", "store.nats.url"},
		{"redis without addr", "store:\n  backend: redis\n", "store.redis.addr"},
		{"blob without connection string", "store:\n  backend: azblob\n", "store.azblob.connection_string"},
		{"negative limit", "throttle:\n  limit: -1\n", "throttle.limit"},
		{"sample ratio", "tracing:\n  sample_ratio: 2\n", "tracing.sample_ratio"},
		{"log level", "log:\n  level: verbose\n", "log.level"},
		{"log format", "log:\n  format: xml\n", "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.True(t, apperrors.IsConfiguration(err))

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestPath(t *testing.T) {
	unsetenv(t, EnvConfigPath)
	assert.Equal(t, "heartcore.yml", Path("heartcore.yml"))

	t.Setenv(EnvConfigPath, "/etc/heartcore.yml")
	assert.Equal(t, "/etc/heartcore.yml", Path("heartcore.yml"))
}

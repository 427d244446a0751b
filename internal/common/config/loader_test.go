package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: "OCAP Agent"
workers:
  ocap-classify:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.App.APIPrefix)
	assert.Equal(t, 8000, cfg.App.Port)
	assert.Equal(t, "ocap-knowledge-base", cfg.OCAP.KnowledgeIndex)
	assert.Equal(t, "ocap-relationship-index", cfg.OCAP.RelationshipIndex)
	assert.Equal(t, 2592000, cfg.OCAP.MemoryTTL)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTokenTTL())
	assert.Equal(t, "otlp-grpc", cfg.Tracing.Exporter)
	assert.Equal(t, "Welcome to OCAP Agent", cfg.Notifications.WelcomeSubject)

	w := GetWorkerConfig(cfg, "ocap-classify")
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.False(t, IsWorkerEnabled(cfg, "ocap-summarize"))
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9100")
	t.Setenv("SECRET_KEY", "from-env")
	t.Setenv("OCAP_TEST_DB_HOST", "db.internal")

	path := writeConfig(t, `
app:
  port: 8000
database:
  postgres:
    host: "${OCAP_TEST_DB_HOST}"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.App.Port)
	assert.Equal(t, "from-env", cfg.Auth.SecretKey)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"port out of range", "app:\n  port: 70000\n"},
		{"prefix without slash", "app:\n  api_prefix: api\n"},
		{"camunda without broker", "camunda:\n  enabled: true\n"},
		{"unknown exporter", "tracing:\n  exporter: zipkin\n"},
		{"notifications without target", "notifications:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

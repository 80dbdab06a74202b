package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
provider:
  base_url: "http://localhost:8081"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 28, cfg.Server.FetchAheadDays)
	assert.Equal(t, 10.0, cfg.Provider.RatePerSecond)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL())
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_PICKER_KEY", "secret-key")
	path := writeConfig(t, `
provider:
  base_url: "http://localhost:8081"
  api_key: "${TEST_PICKER_KEY}"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-key", cfg.Provider.APIKey)
}

func TestLoadAuditDefaultPath(t *testing.T) {
	path := writeConfig(t, `
provider:
  base_url: "http://localhost:8081"
audit:
  enabled: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "data/lessonbook_audit.db", cfg.Audit.Path)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	path := writeConfig(t, `
provider:
  base_url: "http://localhost:8081"
booking:
  timezone: "Not/AZone"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, cfg.Location())
}

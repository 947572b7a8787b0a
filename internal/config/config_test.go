// ABOUTME: Tests for configuration loading
// ABOUTME: Covers env expansion, defaults, duration parsing, and validation failures

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
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
state_dir: /var/lib/chatpilot
http:
  addr: 127.0.0.1:9999
  jwt_secret: super-secret
  rate_limit_rps: 25
billing:
  base_url: https://billing.example.com
  install_id: install-123
  timeout: 30s
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/chatpilot", cfg.StateDir)
	assert.Equal(t, "127.0.0.1:9999", cfg.HTTP.Addr)
	assert.Equal(t, "super-secret", cfg.HTTP.JWTSecret)
	assert.Equal(t, 25.0, cfg.HTTP.RateLimitRPS)
	assert.Equal(t, "https://billing.example.com", cfg.Billing.BaseURL)
	assert.Equal(t, "install-123", cfg.Billing.InstallID)
	assert.Equal(t, 30*time.Second, cfg.Billing.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
state_dir: /var/lib/chatpilot
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8787", cfg.HTTP.Addr)
	assert.Equal(t, 10.0, cfg.HTTP.RateLimitRPS)
	assert.Equal(t, "https://billing.chatpilot.app", cfg.Billing.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Billing.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "from-env")
	path := writeConfig(t, `
state_dir: /var/lib/chatpilot
http:
  jwt_secret: ${TEST_JWT_SECRET}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.HTTP.JWTSecret)
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	path := writeConfig(t, `
state_dir: /var/lib/chatpilot
http:
  jwt_secret: ${CHATPILOT_TEST_UNSET_VAR}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.HTTP.JWTSecret)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
state_dir: /var/lib/chatpilot
billing:
  timeout: not-a-duration
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing durations")
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	path := writeConfig(t, `
state_dir: /var/lib/chatpilot
logging:
  format: xml
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "logging.format")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "state_dir: [unclosed")

	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing config file")
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.StateDir)
	assert.Equal(t, "127.0.0.1:8787", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.Billing.Timeout)
	require.NoError(t, cfg.Validate())
}

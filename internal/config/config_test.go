package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api/v1/auto-orchestrate", cfg.OrchestrateURL)
	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*1024*1024, cfg.Limits.MaxPersistBytes)
	assert.Equal(t, 50, cfg.Limits.MinRegexMatchLen)
	assert.Equal(t, 500, cfg.Limits.TruncateLen)
	assert.False(t, cfg.OIDCEnabled())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ORCH_STREAM_URL", "https://orchestrate.example.com/stream")
	t.Setenv("ORCH_INSTALL_DATA_URL", "https://api.example.com/install-data")
	t.Setenv("ORCH_CORS_ORIGINS", "https://app.example.com, https://staging.example.com")
	t.Setenv("ORCH_OIDC_ISSUER", "https://issuer.example.com")
	t.Setenv("ORCH_OIDC_AUDIENCE", "orchestrate")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://orchestrate.example.com/stream", cfg.OrchestrateURL)
	assert.Equal(t, "https://api.example.com/install-data", cfg.InstallDataURL)
	assert.Equal(t, []string{"https://app.example.com", "https://staging.example.com"}, cfg.CORSOrigins)
	assert.True(t, cfg.OIDCEnabled())
}

func TestLoadFromEnv_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "orchestrate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
orchestrate_url: https://file.example.com/stream
limits:
  max_persist_bytes: 1048576
  min_regex_match_len: 50
  truncate_len: 500
`), 0o644))
	t.Setenv("ORCH_CONFIG_FILE", path)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com/stream", cfg.OrchestrateURL)
	assert.Equal(t, 1048576, cfg.Limits.MaxPersistBytes)
}

func TestLoadFile_InvalidLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
limits:
  max_persist_bytes: -1
`), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_persist_bytes")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ORCH_STREAM_URL", "ORCH_INSTALL_DATA_URL", "ORCH_AUDIT_URL",
		"ORCH_BEARER_TOKEN", "ORCH_API_PORT", "ORCH_CORS_ORIGINS",
		"ORCH_OIDC_ISSUER", "ORCH_OIDC_AUDIENCE", "ORCH_LOG_LEVEL",
		"ORCH_OTEL_ENABLED", "ORCH_CONFIG_FILE",
	} {
		orig, wasSet := os.LookupEnv(key)
		if wasSet {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

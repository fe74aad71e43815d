package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":17171", cfg.Server.Address)
	require.Equal(t, 512, cfg.Server.MaxSessions)
	require.Equal(t, 5*time.Minute, cfg.Server.LeasePeriod)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "sqlite", cfg.EventLog.Backend)
	require.Equal(t, "conclave.db", cfg.EventLog.Path)
	require.True(t, cfg.Metrics.Enabled)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  address: ":4242"
  max_sessions: 8
eventlog:
  backend: memory
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":4242", cfg.Server.Address)
	require.Equal(t, 8, cfg.Server.MaxSessions)
	require.Equal(t, "memory", cfg.EventLog.Backend)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, ":9090", cfg.Metrics.Address, "unset keys keep their defaults")
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("CONCLAVE_SERVER_ADDRESS", ":5353")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":5353", cfg.Server.Address)
}

func TestValidateRejectsBadBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("eventlog:\n  backend: dynamo\n"), 0o644))

	_, err := Load(path)
	require.ErrorContains(t, err, "unknown eventlog backend")
}

func TestValidateRequiresPostgresDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("eventlog:\n  backend: postgres\n"), 0o644))

	_, err := Load(path)
	require.ErrorContains(t, err, "eventlog.dsn required")
}

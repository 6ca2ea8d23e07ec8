package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("ETB_AUTH__TOKEN", "bridge-secret")
	t.Setenv("ETB_HOME_ASSISTANT__TOKEN", "ha-token")
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://public-api.energy-tracker.best-ios-apps.de", cfg.EnergyTracker.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.EnergyTracker.RequestTimeout)
	assert.Equal(t, 15*time.Minute, cfg.EnergyTracker.ScanInterval)
	assert.Equal(t, 4, cfg.EnergyTracker.MaxConcurrentFetches)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "en", cfg.Locale)
	assert.False(t, cfg.Monitoring.Influx.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	t.Setenv("ETB_ENERGY_TRACKER__SCAN_INTERVAL", "5m")
	t.Setenv("ETB_DATABASE__DRIVER", "postgres")
	t.Setenv("ETB_DATABASE__POSTGRES__HOST", "db.internal")
	t.Setenv("ETB_LOCALE", "de")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.EnergyTracker.ScanInterval)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, "de", cfg.Locale)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	setRequired(t)
	t.Setenv("ETB_SERVER__PORT", "")
	os.Unsetenv("ETB_SERVER__PORT")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ETB_SERVER__PORT=9191\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ETB_SERVER__PORT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"missing auth token":  {"ETB_AUTH__TOKEN": ""},
		"unknown driver":      {"ETB_DATABASE__DRIVER": "mysql"},
		"postgres needs host": {"ETB_DATABASE__DRIVER": "postgres"},
		"scan too short":      {"ETB_ENERGY_TRACKER__SCAN_INTERVAL": "10s"},
		"influx without org":  {"ETB_MONITORING__INFLUX__ENABLED": "true"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

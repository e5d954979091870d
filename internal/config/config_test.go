package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CYCLUS_DATA_DIR", "CYCLUS_DURATION", "CYCLUS_START_MONTH",
		"CYCLUS_START_YEAR", "CYCLUS_SIM_START", "CYCLUS_DECAY_INTERVAL",
		"CYCLUS_LOG_LEVEL", "CYCLUS_HTTP_PORT",
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

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 120, cfg.Duration)
	require.Equal(t, 1, cfg.StartMonth)
	require.Equal(t, 2020, cfg.StartYear)
	require.Equal(t, 12, cfg.DecayInterval)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("CYCLUS_DURATION", "36")
	os.Setenv("CYCLUS_START_MONTH", "7")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 36, cfg.Duration)
	require.Equal(t, 7, cfg.StartMonth)
}

func TestLoadRejectsInvalidStartMonth(t *testing.T) {
	clearEnv(t)
	os.Setenv("CYCLUS_START_MONTH", "13")
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestLoadDataDirOverrideTakesPriority(t *testing.T) {
	clearEnv(t)
	os.Setenv("CYCLUS_DATA_DIR", "/should-not-be-used")
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, dir, cfg.DataDir)
}

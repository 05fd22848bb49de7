package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultSatisfiesInvariants(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.verify())
}

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := loadFrom(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadFromMergesOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockstep.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"net":{"tps":120,"lead_ticks":8,"d_max":64,"history":4096,"catchup_budget":1000,"start_delay_ms":500}}`), 0o644))

	cfg, err := loadFrom(path)
	require.NoError(t, err)
	require.Equal(t, uint32(120), cfg.Net.TPS)
	require.Equal(t, uint32(500), cfg.Net.StartDelayMs)
}

func TestLoadFromRejectsInvalidConstants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockstep.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"net":{"tps":60,"lead_ticks":40,"d_max":4,"history":2048,"catchup_budget":2000}}`), 0o644))

	_, err := loadFrom(path)
	require.Error(t, err)
}

func TestLoadHonorsEnvVarOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log":{"level":"debug","console":true}}`), 0o644))

	t.Setenv(ConfigEnvVar, path)
	require.NoError(t, Load())
	require.Equal(t, "debug", Global.Log.Level)
}

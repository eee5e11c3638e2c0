package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultPassesValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestLoadFileMissingPathIsNotAnError(t *testing.T) {
	cfg := Default()
	require.NoError(t, LoadFile("", &cfg))
	require.NoError(t, LoadFile(filepath.Join(t.TempDir(), "missing.toml"), &cfg))
}

func TestLoadFileOverridesDeclaredFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tspipe.toml")
	contents := "log_level = \"debug\"\nwindow_size = 10\npart_duration = 0.5\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg := Default()
	require.NoError(t, LoadFile(path, &cfg))
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 10, cfg.WindowSize)
	require.Equal(t, 500*time.Millisecond, cfg.PartDuration)
}

func TestApplyEnvOverridesDefaults(t *testing.T) {
	t.Setenv("TSPIPE_LOG_LEVEL", "warn")
	t.Setenv("TSPIPE_WINDOW_SIZE", "9")
	t.Setenv("TSPIPE_ENABLE_METRICS", "true")

	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg))
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, 9, cfg.WindowSize)
	require.True(t, cfg.EnableMetrics)
}

func TestApplyEnvRejectsInvalidBool(t *testing.T) {
	t.Setenv("TSPIPE_LOG_JSON", "not-a-bool")
	cfg := Default()
	require.Error(t, ApplyEnv(&cfg))
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cfg := Default()
	cfg.WindowSize = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.PartDuration = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LogLevel = "verbose"
	require.Error(t, cfg.Validate())
}

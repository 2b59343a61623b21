package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LOOMPLAN_CONFIG_PATH", "LOOMPLAN_MAX_DEFERRAL", "LOOMPLAN_PROJECT_START",
		"LOOMPLAN_SKIP_WEEKENDS", "LOOMPLAN_STATE_DIR", "LOOMPLAN_STATE_DRIVER", "LOOMPLAN_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10000, cfg.Scheduler.MaxDeferral)
	assert.Equal(t, ".loomplan", cfg.State.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, filepath.Join(".loomplan", "progress.json"), cfg.ProgressPath())

	start, err := cfg.Start()
	require.NoError(t, err)
	assert.Nil(t, start)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "loomplan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scheduler:
  max_deferral: 500
  project_start: "2026-03-02"
log:
  level: debug
`), 0644))

	t.Setenv("LOOMPLAN_CONFIG_PATH", path)
	t.Setenv("LOOMPLAN_SKIP_WEEKENDS", "true")
	t.Setenv("LOOMPLAN_STATE_DIR", "/tmp/plan-state")
	t.Setenv("LOOMPLAN_STATE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Scheduler.MaxDeferral)
	assert.True(t, cfg.Scheduler.SkipWeekends)
	assert.Equal(t, "/tmp/plan-state", cfg.State.Dir)
	assert.Equal(t, filepath.Join("/tmp/plan-state", "progress.db"), cfg.ProgressPath())

	start, err := cfg.Start()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), *start)

	t.Setenv("LOOMPLAN_MAX_DEFERRAL", "25")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Scheduler.MaxDeferral)

	logger, err := cfg.Logger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)

	t.Setenv("LOOMPLAN_MAX_DEFERRAL", "lots")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("LOOMPLAN_MAX_DEFERRAL", "")
	t.Setenv("LOOMPLAN_PROJECT_START", "next monday")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("LOOMPLAN_PROJECT_START", "")
	t.Setenv("LOOMPLAN_STATE_DRIVER", "postgres")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("LOOMPLAN_STATE_DRIVER", "")
	t.Setenv("LOOMPLAN_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	require.Error(t, err)
}

func TestLogger_InvalidLevel(t *testing.T) {
	cfg := Config{Log: LogConfig{Level: "chatty"}}
	_, err := cfg.Logger()
	require.Error(t, err)
}

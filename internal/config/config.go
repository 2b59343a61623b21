package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config defines CLI and engine configuration.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	State     StateConfig     `yaml:"state"`
	Log       LogConfig       `yaml:"log"`
}

type SchedulerConfig struct {
	MaxDeferral  int    `yaml:"max_deferral"`
	ProjectStart string `yaml:"project_start"` // YYYY-MM-DD; overrides the snapshot's
	SkipWeekends bool   `yaml:"skip_weekends"`
}

type StateConfig struct {
	Dir    string `yaml:"dir"`
	Driver string `yaml:"driver"` // "json" or "sqlite"
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Scheduler: SchedulerConfig{
			MaxDeferral: 10000,
		},
		State: StateConfig{
			Dir:    ".loomplan",
			Driver: "json",
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if path := os.Getenv("LOOMPLAN_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if v := os.Getenv("LOOMPLAN_MAX_DEFERRAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOOMPLAN_MAX_DEFERRAL: %w", err)
		}
		cfg.Scheduler.MaxDeferral = n
	}
	if v := os.Getenv("LOOMPLAN_PROJECT_START"); v != "" {
		cfg.Scheduler.ProjectStart = v
	}
	if v := os.Getenv("LOOMPLAN_SKIP_WEEKENDS"); v != "" {
		skip, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOOMPLAN_SKIP_WEEKENDS: %w", err)
		}
		cfg.Scheduler.SkipWeekends = skip
	}
	if v := os.Getenv("LOOMPLAN_STATE_DIR"); v != "" {
		cfg.State.Dir = v
	}
	if v := os.Getenv("LOOMPLAN_STATE_DRIVER"); v != "" {
		cfg.State.Driver = v
	}
	if v := os.Getenv("LOOMPLAN_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	switch cfg.State.Driver {
	case "json", "sqlite":
	default:
		return Config{}, fmt.Errorf("invalid state driver %q (want json or sqlite)", cfg.State.Driver)
	}
	if _, err := cfg.Start(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Start parses the configured project start. It returns nil when unset.
func (c Config) Start() (*time.Time, error) {
	if c.Scheduler.ProjectStart == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, c.Scheduler.ProjectStart)
	if err != nil {
		return nil, fmt.Errorf("invalid project start %q: %w", c.Scheduler.ProjectStart, err)
	}
	return &t, nil
}

// ProgressPath is the ledger file inside the state directory.
func (c Config) ProgressPath() string {
	if c.State.Driver == "sqlite" {
		return filepath.Join(c.State.Dir, "progress.db")
	}
	return filepath.Join(c.State.Dir, "progress.json")
}

// Logger builds a production zap logger at the configured level.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Package config handles loading and validating morningshift configuration.
// Supports YAML config files, a .env file and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default values.
const (
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultLogPath       = "~/.local/share/morningshift/logs"
	DefaultRetentionDays = 7
	DefaultTick          = time.Second
	DefaultVoiceAddr     = "127.0.0.1:8080"
	DefaultDBPath        = "~/.local/share/morningshift/presets.db"

	// ProjectConfigName is the per-directory config file.
	ProjectConfigName = "morningshift.yaml"

	envPrefix = "MORNINGSHIFT"
)

// Validation errors.
var (
	ErrCronAndInterval       = errors.New("schedule: cron and interval are mutually exclusive")
	ErrInvalidLogLevel       = errors.New("logging: level must be debug, info, warn, or error")
	ErrInvalidLogFormat      = errors.New("logging: format must be json or text")
	ErrInvalidTick           = errors.New("timer: tick must be positive and at most 1s")
	ErrScheduleWithoutPreset = errors.New("schedule: preset is required when a schedule is set")
)

// Config holds all morningshift configuration.
type Config struct {
	Presets  PresetsConfig  `mapstructure:"presets"`
	Timer    TimerConfig    `mapstructure:"timer"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Voice    VoiceConfig    `mapstructure:"voice"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PresetsConfig selects where presets come from. An empty Path uses the
// library at DBPath when it holds presets, else the built-in set.
type PresetsConfig struct {
	Path   string `mapstructure:"path"`
	Watch  bool   `mapstructure:"watch"`
	DBPath string `mapstructure:"db_path"`
}

// TimerConfig tunes the countdown.
type TimerConfig struct {
	Tick time.Duration `mapstructure:"tick"`
	Bell bool          `mapstructure:"bell"`
}

// ScheduleConfig defines when the daemon starts a workout.
type ScheduleConfig struct {
	Cron     string        `mapstructure:"cron"`
	Interval string        `mapstructure:"interval"`
	Window   *WindowConfig `mapstructure:"window"`
	Preset   string        `mapstructure:"preset"`
}

// WindowConfig restricts scheduled runs to a time of day.
type WindowConfig struct {
	Start    string `mapstructure:"start"`
	End      string `mapstructure:"end"`
	Timezone string `mapstructure:"timezone"`
}

// VoiceConfig configures the voice assistant webhook.
type VoiceConfig struct {
	Addr string `mapstructure:"addr"`
}

// MetricsConfig toggles the Prometheus endpoint on the webhook server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// HasSchedule reports whether the daemon has anything to trigger on.
func (s ScheduleConfig) HasSchedule() bool {
	return s.Cron != "" || s.Interval != ""
}

// IntervalDuration parses the interval, returning 0 when unset.
func (s ScheduleConfig) IntervalDuration() (time.Duration, error) {
	if s.Interval == "" {
		return 0, nil
	}
	return time.ParseDuration(s.Interval)
}

// GlobalConfigPath returns ~/.config/morningshift/config.yaml.
func GlobalConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "morningshift", "config.yaml")
}

// Load reads the global config, the config in the working directory, and
// environment overrides.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working dir: %w", err)
	}
	return LoadFromPaths(cwd, GlobalConfigPath())
}

// LoadFromPaths merges globalPath with projectDir/morningshift.yaml, the
// project file taking precedence. Missing files are skipped. A .env file in
// projectDir is loaded into the environment before overrides are applied.
func LoadFromPaths(projectDir, globalPath string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(projectDir, ".env")); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := mergeFile(v, expandPath(globalPath)); err != nil {
		return nil, err
	}
	if err := mergeFile(v, filepath.Join(projectDir, ProjectConfigName)); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	normalize(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("presets.path", "")
	v.SetDefault("presets.watch", false)
	v.SetDefault("presets.db_path", DefaultDBPath)
	v.SetDefault("timer.tick", DefaultTick)
	v.SetDefault("timer.bell", true)
	v.SetDefault("schedule.cron", "")
	v.SetDefault("schedule.interval", "")
	v.SetDefault("schedule.preset", "")
	v.SetDefault("voice.addr", DefaultVoiceAddr)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
	v.SetDefault("logging.path", DefaultLogPath)
	v.SetDefault("logging.retention_days", DefaultRetentionDays)
}

func mergeFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open config %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := v.MergeConfig(f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func normalize(cfg *Config) {
	cfg.Presets.Path = expandPath(cfg.Presets.Path)
	cfg.Presets.DBPath = expandPath(cfg.Presets.DBPath)
	cfg.Logging.Path = expandPath(cfg.Logging.Path)
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	if w := cfg.Schedule.Window; w != nil && w.Start == "" && w.End == "" {
		cfg.Schedule.Window = nil
	}
}

// Validate checks the configuration. Empty fields are treated as unset.
func Validate(cfg *Config) error {
	if cfg.Schedule.Cron != "" && cfg.Schedule.Interval != "" {
		return ErrCronAndInterval
	}
	if _, err := cfg.Schedule.IntervalDuration(); err != nil {
		return fmt.Errorf("schedule.interval %q: %w", cfg.Schedule.Interval, err)
	}
	if cfg.Schedule.HasSchedule() && cfg.Schedule.Preset == "" {
		return ErrScheduleWithoutPreset
	}
	if w := cfg.Schedule.Window; w != nil && w.Timezone != "" {
		if _, err := time.LoadLocation(w.Timezone); err != nil {
			return fmt.Errorf("schedule.window.timezone %q: %w", w.Timezone, err)
		}
	}

	if cfg.Timer.Tick < 0 || cfg.Timer.Tick > time.Second {
		return ErrInvalidTick
	}

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		return ErrInvalidLogFormat
	}
	return nil
}

// TickInterval returns the configured tick or the default.
func (c *Config) TickInterval() time.Duration {
	if c.Timer.Tick <= 0 {
		return DefaultTick
	}
	return c.Timer.Tick
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Package config loads alarmd settings from an XDG-located YAML file with
// ALARMD_* environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const relConfigPath = "alarmd/config.yaml"

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Timezone   string           `yaml:"timezone"`
	Database   string           `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Snooze     SnoozeConfig     `yaml:"snooze"`
	Validation ValidationConfig `yaml:"validation"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Notify     NotifyConfig     `yaml:"notify"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	NoColor bool   `yaml:"no_color"`
	File    string `yaml:"file,omitempty"`
}

type SnoozeConfig struct {
	Minutes  int `yaml:"minutes"`
	MaxCount int `yaml:"max_count"`
}

type ValidationConfig struct {
	MaxTitleLength int `yaml:"max_title_length"`
}

type SweepConfig struct {
	Schedule           string `yaml:"schedule"`
	MissedAfterMinutes int    `yaml:"missed_after_minutes"`
}

type SchedulerConfig struct {
	Buffer int `yaml:"buffer"`
}

type NotifyConfig struct {
	Desktop bool `yaml:"desktop"`
}

func Default() *Config {
	return &Config{
		Timezone: "Local",
		Database: filepath.Join(xdg.DataHome, "alarmd", "alarmd.db"),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Snooze:     SnoozeConfig{Minutes: 9, MaxCount: 3},
		Validation: ValidationConfig{MaxTitleLength: 100},
		Sweep:      SweepConfig{Schedule: "@every 1m", MissedAfterMinutes: 30},
		Scheduler:  SchedulerConfig{Buffer: 64},
	}
}

// Load reads the config at path, or the first alarmd/config.yaml in the XDG
// config directories when path is empty. A missing file in the XDG search
// yields the defaults; an explicit path must exist.
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := xdg.SearchConfigFile(relConfigPath)
		if err != nil {
			cfg := FromEnv(Default())
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		path = found
	}
	return LoadFromFile(path)
}

func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg = FromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv returns a copy of base with ALARMD_* variables applied. Values that
// do not parse are ignored.
func FromEnv(base *Config) *Config {
	cfg := *base
	if v, ok := getEnvString("ALARMD_TIMEZONE"); ok {
		cfg.Timezone = v
	}
	if v, ok := getEnvString("ALARMD_DB"); ok {
		cfg.Database = v
	}
	if v, ok := getEnvString("ALARMD_LOG_LEVEL"); ok {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v, ok := getEnvString("ALARMD_LOG_FORMAT"); ok {
		cfg.Log.Format = strings.ToLower(v)
	}
	if v, ok := getEnvBool("ALARMD_NO_COLOR"); ok {
		cfg.Log.NoColor = v
	}
	if v, ok := getEnvInt("ALARMD_SNOOZE_MINUTES"); ok && v > 0 {
		cfg.Snooze.Minutes = v
	}
	if v, ok := getEnvInt("ALARMD_MAX_SNOOZES"); ok && v >= 0 {
		cfg.Snooze.MaxCount = v
	}
	if v, ok := getEnvInt("ALARMD_SCHEDULER_BUFFER"); ok && v > 0 {
		cfg.Scheduler.Buffer = v
	}
	if v, ok := getEnvBool("ALARMD_DESKTOP_NOTIFICATIONS"); ok {
		cfg.Notify.Desktop = v
	}
	return &cfg
}

// Validate fills zero values with defaults and rejects the rest of the bad
// values.
func (c *Config) Validate() error {
	def := Default()
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	if strings.TrimSpace(c.Database) == "" {
		c.Database = def.Database
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.Log.Format)
	}

	if c.Snooze.Minutes == 0 {
		c.Snooze.Minutes = def.Snooze.Minutes
	}
	if c.Snooze.Minutes < 0 {
		return fmt.Errorf("%w: snooze minutes must be positive", ErrInvalidConfig)
	}
	if c.Snooze.MaxCount < 0 {
		return fmt.Errorf("%w: snooze max_count must not be negative", ErrInvalidConfig)
	}

	if c.Validation.MaxTitleLength == 0 {
		c.Validation.MaxTitleLength = def.Validation.MaxTitleLength
	}
	if c.Validation.MaxTitleLength < 0 {
		return fmt.Errorf("%w: max_title_length must be positive", ErrInvalidConfig)
	}

	if c.Sweep.Schedule == "" {
		c.Sweep.Schedule = def.Sweep.Schedule
	}
	if _, err := cron.ParseStandard(c.Sweep.Schedule); err != nil {
		return fmt.Errorf("%w: sweep schedule %q: %v", ErrInvalidConfig, c.Sweep.Schedule, err)
	}
	if c.Sweep.MissedAfterMinutes == 0 {
		c.Sweep.MissedAfterMinutes = def.Sweep.MissedAfterMinutes
	}
	if c.Sweep.MissedAfterMinutes < 0 {
		return fmt.Errorf("%w: missed_after_minutes must be positive", ErrInvalidConfig)
	}

	if c.Scheduler.Buffer <= 0 {
		c.Scheduler.Buffer = def.Scheduler.Buffer
	}
	return nil
}

// Location resolves Timezone. "Local" and "" mean the system zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c *Config) SnoozeDuration() time.Duration {
	return time.Duration(c.Snooze.Minutes) * time.Minute
}

func (c *Config) MissedAfter() time.Duration {
	return time.Duration(c.Sweep.MissedAfterMinutes) * time.Minute
}

// EnsureDatabaseDir creates the directory holding the database file.
func (c *Config) EnsureDatabaseDir() error {
	dir := filepath.Dir(c.Database)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}

// DefaultLogFile is where the TUI logs when no log file is configured, so
// log lines never draw over the screen.
func DefaultLogFile() (string, error) {
	return xdg.StateFile("alarmd/alarmd.log")
}

// WriteDefault writes the default configuration to path, or to the XDG
// config location when path is empty. An existing file is left alone unless
// force is set.
func WriteDefault(path string, force bool) (string, error) {
	if path == "" {
		var err error
		path, err = xdg.ConfigFile(relConfigPath)
		if err != nil {
			return "", fmt.Errorf("determine config file path: %w", err)
		}
	}
	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write config file: %w", err)
	}
	return path, nil
}

func getEnvString(name string) (string, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	return raw, raw != ""
}

func getEnvInt(name string) (int, bool) {
	raw, ok := getEnvString(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func getEnvBool(name string) (bool, bool) {
	raw, ok := getEnvString(name)
	if !ok {
		return false, false
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}

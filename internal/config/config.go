// Package config loads gatekeeper configuration from an optional TOML
// file, then applies GATEKEEPER_* environment overrides. Unset values
// fall back to dev-friendly defaults; unknown values fail soft where a
// safe default exists.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	HTTPAddr string `toml:"http_addr"`
	Env      string `toml:"env"` // "dev" | "prod"
	DBPath   string `toml:"db_path"`

	// DeviceToken is the shared secret the gate devices present on every
	// scan. Must be set in prod.
	DeviceToken string `toml:"device_token"`

	// JWTSecret signs operator session tokens.
	JWTSecret       string `toml:"jwt_secret"`
	SessionTTLHours int    `toml:"session_ttl_hours"`

	SnapshotDir     string `toml:"snapshot_dir"`
	PlaceholderPath string `toml:"placeholder_path"`

	Camera CameraConfig `toml:"camera"`
	Queue  QueueConfig  `toml:"queue"`
	Log    LogConfig    `toml:"log"`
}

type CameraConfig struct {
	EntryURL       string `toml:"entry_url"`
	ExitURL        string `toml:"exit_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// TestMode skips the cameras and always stores the placeholder.
	TestMode bool `toml:"test_mode"`
}

type QueueConfig struct {
	// PendingTTLSeconds bounds how long an unclaimed request or unread
	// alert survives before the sweep removes it.
	PendingTTLSeconds int `toml:"pending_ttl_seconds"`
	// AbandonAfterMinutes bounds how long a claimed (processing) action
	// survives without a decision.
	AbandonAfterMinutes  int `toml:"abandon_after_minutes"`
	PruneIntervalMinutes int `toml:"prune_interval_minutes"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // debug | info | warn | error
	Format string `toml:"format"` // json | text
}

func defaults() Config {
	return Config{
		HTTPAddr:        ":8080",
		Env:             "dev",
		DBPath:          "./data/gatekeeper.db",
		DeviceToken:     "dev_device_token",
		JWTSecret:       "dev_session_secret",
		SessionTTLHours: 12,
		SnapshotDir:     "./data/snapshots",
		PlaceholderPath: "./static/placeholder.jpg",
		Camera: CameraConfig{
			TimeoutSeconds: 3,
			TestMode:       true,
		},
		Queue: QueueConfig{
			PendingTTLSeconds:    120,
			AbandonAfterMinutes:  15,
			PruneIntervalMinutes: 5,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads the config file at path (skipped when path is empty or the
// file does not exist) and applies environment overrides on top.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("open config %s: %w", path, err)
			}
		} else {
			defer f.Close()
			if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
				return Config{}, fmt.Errorf("decode config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	cfg.Env = strings.ToLower(cfg.Env)
	if cfg.Env != "dev" && cfg.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}

	if cfg.Env == "prod" {
		if cfg.DeviceToken == "" || cfg.DeviceToken == defaults().DeviceToken {
			return Config{}, fmt.Errorf("device_token must be set in prod")
		}
		if cfg.JWTSecret == "" || cfg.JWTSecret == defaults().JWTSecret {
			return Config{}, fmt.Errorf("jwt_secret must be set in prod")
		}
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getenvDefault("GATEKEEPER_HTTP_ADDR", cfg.HTTPAddr)
	cfg.Env = getenvDefault("GATEKEEPER_ENV", cfg.Env)
	cfg.DBPath = getenvDefault("GATEKEEPER_DB_PATH", cfg.DBPath)
	cfg.DeviceToken = getenvDefault("GATEKEEPER_DEVICE_TOKEN", cfg.DeviceToken)
	cfg.JWTSecret = getenvDefault("GATEKEEPER_JWT_SECRET", cfg.JWTSecret)
	cfg.SnapshotDir = getenvDefault("GATEKEEPER_SNAPSHOT_DIR", cfg.SnapshotDir)
	cfg.PlaceholderPath = getenvDefault("GATEKEEPER_PLACEHOLDER_PATH", cfg.PlaceholderPath)
	cfg.Camera.EntryURL = getenvDefault("GATEKEEPER_CAMERA_ENTRY_URL", cfg.Camera.EntryURL)
	cfg.Camera.ExitURL = getenvDefault("GATEKEEPER_CAMERA_EXIT_URL", cfg.Camera.ExitURL)

	cfg.SessionTTLHours = getenvInt("GATEKEEPER_SESSION_TTL_HOURS", cfg.SessionTTLHours)
	cfg.Queue.PendingTTLSeconds = getenvInt("GATEKEEPER_PENDING_TTL_SECONDS", cfg.Queue.PendingTTLSeconds)
	cfg.Queue.AbandonAfterMinutes = getenvInt("GATEKEEPER_ABANDON_AFTER_MINUTES", cfg.Queue.AbandonAfterMinutes)
	cfg.Queue.PruneIntervalMinutes = getenvInt("GATEKEEPER_PRUNE_INTERVAL_MINUTES", cfg.Queue.PruneIntervalMinutes)

	if v := os.Getenv("GATEKEEPER_CAMERA_TEST_MODE"); v != "" {
		cfg.Camera.TestMode = strings.EqualFold(v, "true") || v == "1"
	}
	cfg.Log.Level = getenvDefault("GATEKEEPER_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenvDefault("GATEKEEPER_LOG_FORMAT", cfg.Log.Format)
}

// Derived values.

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c Config) PendingTTL() time.Duration {
	return time.Duration(c.Queue.PendingTTLSeconds) * time.Second
}

func (c Config) AbandonAfter() time.Duration {
	return time.Duration(c.Queue.AbandonAfterMinutes) * time.Minute
}

func (c Config) PruneInterval() time.Duration {
	return time.Duration(c.Queue.PruneIntervalMinutes) * time.Minute
}

func (c Config) CameraTimeout() time.Duration {
	return time.Duration(c.Camera.TimeoutSeconds) * time.Second
}

// SlogLevel maps the configured level string, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration. Every field has a workable
// default so an empty file (or no file at all) still boots a local server.
type Config struct {
	Port   string `yaml:"port"`
	DBPath string `yaml:"db_path"`

	// Timezone decides what "today" means for the events-due-today query,
	// e.g. "Asia/Seoul". Empty means the host's local zone.
	Timezone string `yaml:"timezone"`

	Notifications NotificationConfig `yaml:"notifications"`

	// BackupDir is the local git repository receiving calendar snapshots.
	BackupDir string `yaml:"backup_dir"`

	// StaticDir holds the frontend assets, icons, and service worker.
	StaticDir string `yaml:"static_dir"`
}

// Duration wraps time.Duration so YAML can carry values like "30m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type NotificationConfig struct {
	// RecheckSchedule is a cron spec for the periodic recheck loop.
	// Anything from "@every 1m" up to "@every 30m" is sensible.
	RecheckSchedule string `yaml:"recheck_schedule"`

	// Lookahead bounds how early a reminder timer may be armed.
	Lookahead Duration `yaml:"lookahead"`

	// VAPID key pair and contact for Web Push. Without keys, push delivery
	// is disabled and reminders reach open pages only.
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
}

// Load reads the YAML file at path (missing file is fine) and applies
// defaults plus PORT/DB_PATH env overrides on top.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults only.
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("VAPID_PUBLIC_KEY"); v != "" {
		cfg.Notifications.VAPIDPublicKey = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		cfg.Notifications.VAPIDPrivateKey = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.DBPath == "" {
		c.DBPath = "./chime.db"
	}
	if c.BackupDir == "" {
		c.BackupDir = "./backups"
	}
	if c.StaticDir == "" {
		c.StaticDir = "./static"
	}
	if c.Notifications.RecheckSchedule == "" {
		c.Notifications.RecheckSchedule = "@every 1m"
	}
	if c.Notifications.Lookahead <= 0 {
		c.Notifications.Lookahead = Duration(30 * time.Minute)
	}
	if c.Notifications.Subscriber == "" {
		c.Notifications.Subscriber = "mailto:admin@localhost"
	}
}

// Location resolves the configured timezone, falling back to the host's
// local zone when unset or unknown.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want default 8080", cfg.Port)
	}
	if cfg.Notifications.RecheckSchedule != "@every 1m" {
		t.Errorf("RecheckSchedule = %q, want default @every 1m", cfg.Notifications.RecheckSchedule)
	}
	if cfg.Notifications.Lookahead.Std() != 30*time.Minute {
		t.Errorf("Lookahead = %v, want default 30m", cfg.Notifications.Lookahead.Std())
	}
}

func TestLoadReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chime.yaml")
	data := `
port: "9090"
timezone: "UTC"
notifications:
  recheck_schedule: "@every 5m"
  lookahead: 1h
  vapid_public_key: "pub"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.Notifications.RecheckSchedule != "@every 5m" {
		t.Errorf("RecheckSchedule = %q, want @every 5m", cfg.Notifications.RecheckSchedule)
	}
	if cfg.Notifications.Lookahead.Std() != time.Hour {
		t.Errorf("Lookahead = %v, want 1h", cfg.Notifications.Lookahead.Std())
	}
	if cfg.Notifications.VAPIDPublicKey != "pub" {
		t.Errorf("VAPIDPublicKey = %q, want pub", cfg.Notifications.VAPIDPublicKey)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Location())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("VAPID_PRIVATE_KEY", "priv-from-env")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("Port = %q, want the PORT override", cfg.Port)
	}
	if cfg.Notifications.VAPIDPrivateKey != "priv-from-env" {
		t.Errorf("VAPIDPrivateKey = %q, want the env override", cfg.Notifications.VAPIDPrivateKey)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() = nil error for malformed YAML")
	}
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	if cfg.Location() != time.Local {
		t.Errorf("Location() = %v, want time.Local for an unknown zone", cfg.Location())
	}
}

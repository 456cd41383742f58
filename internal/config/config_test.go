package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.SessionID = "class-1"
	cfg.ServiceAccountPath = "service-account.json"
	cfg.StorageBucket = "my-project.appspot.com"
	return cfg
}

// TestDefaultConfig tests the shipped defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MonitorIndex != 0 {
		t.Errorf("Expected monitor index 0, got %d", cfg.MonitorIndex)
	}
	if cfg.DotColor != "#8E4EC6" {
		t.Errorf("Expected default dot color #8E4EC6, got %s", cfg.DotColor)
	}
	if cfg.CaptureCooldownMs != 2000 {
		t.Errorf("Expected 2000ms cooldown, got %d", cfg.CaptureCooldownMs)
	}
	if cfg.FadeMs != 10000 {
		t.Errorf("Expected 10000ms fade, got %d", cfg.FadeMs)
	}
	if cfg.OverlayMode != OverlayAuto {
		t.Errorf("Expected overlay mode %q, got %q", OverlayAuto, cfg.OverlayMode)
	}
	if !cfg.EnableHotkey || cfg.Hotkey != "Ctrl+B" {
		t.Errorf("Expected hotkey Ctrl+B enabled, got %q (enabled=%v)", cfg.Hotkey, cfg.EnableHotkey)
	}
	if cfg.HTTPTriggerPort != 8889 {
		t.Errorf("Expected trigger port 8889, got %d", cfg.HTTPTriggerPort)
	}
	if cfg.JPEGQuality != 85 {
		t.Errorf("Expected JPEG quality 85, got %d", cfg.JPEGQuality)
	}
}

// TestValidateRequiredFields tests that session and credential fields are
// mandatory.
func TestValidateRequiredFields(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "session_id") {
		t.Errorf("Expected session_id error, got %v", err)
	}

	cfg.SessionID = "class-1"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "service_account_path") {
		t.Errorf("Expected service_account_path error, got %v", err)
	}

	cfg.ServiceAccountPath = "sa.json"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "storage_bucket") {
		t.Errorf("Expected storage_bucket error, got %v", err)
	}

	cfg.StorageBucket = "bucket"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

// TestValidateRanges tests the numeric and enum checks.
func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative monitor", func(c *Config) { c.MonitorIndex = -1 }},
		{"zero radius", func(c *Config) { c.DotRadiusPx = 0 }},
		{"negative fade", func(c *Config) { c.FadeMs = -1 }},
		{"negative cooldown", func(c *Config) { c.CaptureCooldownMs = -5 }},
		{"quality too low", func(c *Config) { c.JPEGQuality = 0 }},
		{"quality too high", func(c *Config) { c.JPEGQuality = 101 }},
		{"unknown overlay mode", func(c *Config) { c.OverlayMode = "fancy" }},
		{"bad color", func(c *Config) { c.DotColor = "purple" }},
		{"port zero", func(c *Config) { c.HTTPTriggerPort = 0 }},
		{"port too high", func(c *Config) { c.HTTPTriggerPort = 70000 }},
		{"negative port", func(c *Config) { c.HTTPTriggerPort = -1 }},
	}

	for _, tt := range tests {
		cfg := validConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}

	// Port is only checked while the HTTP trigger is in use.
	cfg := validConfig()
	cfg.HTTPTriggerEnabled = false
	cfg.HTTPTriggerPort = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected port ignored with HTTP trigger disabled, got %v", err)
	}
}

// TestParseColor tests #RRGGBB parsing.
func TestParseColor(t *testing.T) {
	r, g, b, err := ParseColor("#8E4EC6")
	if err != nil {
		t.Fatalf("ParseColor failed: %v", err)
	}
	if r != 0x8E || g != 0x4E || b != 0xC6 {
		t.Errorf("Expected (0x8E,0x4E,0xC6), got (0x%02X,0x%02X,0x%02X)", r, g, b)
	}

	if _, _, _, err := ParseColor("ff0000"); err != nil {
		t.Errorf("Expected bare hex to parse, got %v", err)
	}

	for _, bad := range []string{"", "#fff", "#gggggg", "#12345", "red"} {
		if _, _, _, err := ParseColor(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

// TestManagerLoadMissingFile tests that a missing config file is a hard
// error pointing at the example.
func TestManagerLoadMissingFile(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope.json"))
	err := m.Load()
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "config.example.json") {
		t.Errorf("Expected error to mention config.example.json, got %v", err)
	}
}

// TestManagerLoadOverridesDefaults tests that file values override defaults
// while unset keys keep them.
func TestManagerLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"session_id":"class-1","monitor_index":1,"dot_color":"#FF0000"}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Could not write config: %v", err)
	}

	m := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := m.Get()
	if cfg.SessionID != "class-1" {
		t.Errorf("Expected session_id class-1, got %s", cfg.SessionID)
	}
	if cfg.MonitorIndex != 1 {
		t.Errorf("Expected monitor index 1, got %d", cfg.MonitorIndex)
	}
	if cfg.DotColor != "#FF0000" {
		t.Errorf("Expected dot color #FF0000, got %s", cfg.DotColor)
	}
	if cfg.CaptureCooldownMs != 2000 {
		t.Errorf("Expected default cooldown preserved, got %d", cfg.CaptureCooldownMs)
	}
}

// TestManagerSaveRoundTrip tests that Save writes a file Load can read back.
func TestManagerSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	m := NewManager(path)
	cfg := validConfig()
	cfg.FadeMs = 5000
	m.Set(cfg)
	if err := m.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	m2 := NewManager(path)
	if err := m2.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := m2.Get().FadeMs; got != 5000 {
		t.Errorf("Expected fade 5000 after round trip, got %d", got)
	}
}

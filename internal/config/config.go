// Package config provides configuration management for the slide tap helper.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Overlay rendering modes
const (
	OverlayAuto    = "auto"
	OverlaySimple  = "simple"
	OverlayLayered = "layered"
)

// Config represents the application configuration
type Config struct {
	// SessionID is the shared identifier students join with
	SessionID string `json:"session_id"`

	// ServiceAccountPath is the path to the cloud service account JSON file
	ServiceAccountPath string `json:"service_account_path"`

	// StorageBucket is the blob storage bucket for slide screenshots
	StorageBucket string `json:"storage_bucket"`

	// MonitorIndex selects which monitor is captured and overlaid (0-based)
	MonitorIndex int `json:"monitor_index"`

	// DotColor is the overlay dot color as #RRGGBB
	DotColor string `json:"dot_color"`

	// DotRadiusPx is the overlay dot radius in pixels
	DotRadiusPx int `json:"dot_radius_px"`

	// FadeMs is how long a dot takes to fade to invisible; 0 disables fading
	FadeMs int `json:"fade_ms"`

	// EnableHotkey enables the global capture hotkey
	EnableHotkey bool `json:"enable_hotkey"`

	// Hotkey is the global capture shortcut (e.g. "Ctrl+B")
	Hotkey string `json:"hotkey"`

	// OverlayMode selects the rendering strategy: "auto", "simple" or "layered"
	OverlayMode string `json:"overlay_mode"`

	// OverlayDebugBg fills the overlay with a low-opacity background so the
	// operator can tell an empty overlay from a missing one
	OverlayDebugBg bool `json:"overlay_debug_bg"`

	// IgnorePastResponsesSeconds drops tap responses older than this relative
	// to process startup; 0 disables the filter
	IgnorePastResponsesSeconds int `json:"ignore_past_responses_seconds"`

	// HTTPTriggerEnabled enables the loopback HTTP trigger server
	HTTPTriggerEnabled bool `json:"http_trigger_enabled"`

	// HTTPTriggerPort is the loopback port for the HTTP trigger server
	HTTPTriggerPort int `json:"http_trigger_port"`

	// TriggerFile is the sentinel file polled for capture requests; empty
	// disables the file trigger
	TriggerFile string `json:"trigger_file"`

	// CaptureCooldownMs rejects capture requests arriving within this window
	// of the last accepted one
	CaptureCooldownMs int `json:"capture_cooldown_ms"`

	// JPEGQuality is the screenshot encode quality (1-100)
	JPEGQuality int `json:"jpeg_quality"`

	// StartOnBoot registers the helper to start on login
	StartOnBoot bool `json:"start_on_boot"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MonitorIndex:               0,
		DotColor:                   "#8E4EC6",
		DotRadiusPx:                8,
		FadeMs:                     10000,
		EnableHotkey:               true,
		Hotkey:                     "Ctrl+B",
		OverlayMode:                OverlayAuto,
		OverlayDebugBg:             false,
		IgnorePastResponsesSeconds: 0,
		HTTPTriggerEnabled:         true,
		HTTPTriggerPort:            8889,
		TriggerFile:                "capture_now.txt",
		CaptureCooldownMs:          2000,
		JPEGQuality:                85,
	}
}

// Validate checks that the configuration is usable. Errors here are fatal at
// startup.
func (c *Config) Validate() error {
	if c.SessionID == "" {
		return fmt.Errorf("missing required config field: session_id")
	}
	if c.ServiceAccountPath == "" {
		return fmt.Errorf("missing required config field: service_account_path")
	}
	if c.StorageBucket == "" {
		return fmt.Errorf("missing required config field: storage_bucket")
	}
	if c.MonitorIndex < 0 {
		return fmt.Errorf("monitor_index must not be negative")
	}
	if c.DotRadiusPx <= 0 {
		return fmt.Errorf("dot_radius_px must be positive")
	}
	if c.FadeMs < 0 {
		return fmt.Errorf("fade_ms must not be negative")
	}
	if c.CaptureCooldownMs < 0 {
		return fmt.Errorf("capture_cooldown_ms must not be negative")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100")
	}
	if c.HTTPTriggerEnabled && (c.HTTPTriggerPort < 1 || c.HTTPTriggerPort > 65535) {
		return fmt.Errorf("http_trigger_port must be between 1 and 65535")
	}
	switch c.OverlayMode {
	case OverlayAuto, OverlaySimple, OverlayLayered:
	default:
		return fmt.Errorf("overlay_mode must be %q, %q or %q", OverlayAuto, OverlaySimple, OverlayLayered)
	}
	if _, _, _, err := ParseColor(c.DotColor); err != nil {
		return fmt.Errorf("dot_color: %w", err)
	}
	return nil
}

// ParseColor parses a #RRGGBB color string into its channels.
func ParseColor(s string) (r, g, b uint8, err error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid color %q, expected #RRGGBB", s)
	}
	var rv, gv, bv int
	if _, err := fmt.Sscanf(strings.ToLower(s), "%02x%02x%02x", &rv, &gv, &bv); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid color %q, expected #RRGGBB", s)
	}
	return uint8(rv), uint8(gv), uint8(bv), nil
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
}

// NewManager creates a new configuration manager for the given file path
func NewManager(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
		config:     DefaultConfig(),
	}
}

// Load reads the configuration from disk. A missing file is an error: the
// helper cannot guess session or credentials.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("configuration file not found: %s (see config.example.json)", m.configPath)
		}
		return err
	}

	if err := json.Unmarshal(data, m.config); err != nil {
		return fmt.Errorf("parse %s: %w", m.configPath, err)
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set updates the configuration
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
}

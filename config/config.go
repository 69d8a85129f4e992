package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Config holds the agent's user-configurable defaults. CLI flags in
// cmd/root.go are layered on top of whatever this loads.
type Config struct {
	InputPeriodSeconds int    `json:"input_period_seconds"`
	HistorySeconds     int    `json:"history_seconds"`
	ResourcesDirectory string `json:"resources_directory"`
	GNMITarget         string `json:"gnmi_target,omitempty"`
	DisableIPCSnapshot bool   `json:"disable_ipc_snapshot"`
	Verbose            bool   `json:"verbose"`
	PrometheusAddr     string `json:"prometheus_addr"`
}

// Default returns a config with sensible defaults.
func Default() Config {
	return Config{
		InputPeriodSeconds: 3,
		HistorySeconds:     60,
		ResourcesDirectory: "/etc/dxagent",
		DisableIPCSnapshot: true,
		Verbose:            false,
		PrometheusAddr:     "",
	}
}

// Path returns ~/.config/dxagent/config.json (or XDG_CONFIG_HOME).
// Returns empty string if home directory cannot be determined.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "" // refuse to fall back to /tmp (security risk)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "dxagent", "config.json")
}

// Load loads config from disk; returns defaults on error.
func Load() Config {
	cfg := Default()
	p := Path()
	if p == "" {
		return cfg
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Printf("dxagent: warning: config parse error: %v", err)
	}
	return cfg
}

// Save writes the config to disk.
func Save(cfg Config) error {
	path := Path()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// RingBufferCapacity derives the ring-buffer capacity from the configured
// history and sampling period: history_seconds/input_period_seconds rounded
// up, clamped to at least 1.
func (c Config) RingBufferCapacity() int {
	period := c.InputPeriodSeconds
	if period < 1 {
		period = 1
	}
	window := c.HistorySeconds
	if window < 1 {
		window = 60
	}
	cap := (window + period - 1) / period
	if cap < 1 {
		cap = 1
	}
	return cap
}

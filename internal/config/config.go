// Package config loads the process-wide configuration constants from a
// JSON file, with an environment-variable path override. Grounded on the
// pack's setting.json loader: a package-global config object, an
// environment-variable override of the file path, and per-field
// validation that fills in safe defaults and rejects invalid constant
// combinations.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ConfigEnvVar names the environment variable that overrides the default
// config file path.
const ConfigEnvVar = "LOCKSTEP_CONFIG"

const defaultConfigPath = "lockstep.json"

// Log holds logging configuration.
type Log struct {
	Level   string `json:"level"`
	Path    string `json:"path"`
	Console bool   `json:"console"`
}

// Net holds the constants from spec §6. The role and address are not part
// of the config file; the binaries take them as command-line flags.
type Net struct {
	TPS           uint32 `json:"tps"`
	LeadTicks     uint32 `json:"lead_ticks"`
	DMax          uint32 `json:"d_max"`
	History       int    `json:"history"`
	CatchupBudget uint32 `json:"catchup_budget"`
	StartDelayMs  uint32 `json:"start_delay_ms"`
}

// Config is the top-level process configuration.
type Config struct {
	Log     Log    `json:"log"`
	Net     Net    `json:"net"`
	Metrics string `json:"metrics_addr"` // optional; empty disables the HTTP metrics server
}

// Default returns the built-in default configuration (spec §6 defaults).
func Default() Config {
	return Config{
		Log: Log{Level: "info", Console: true},
		Net: Net{
			TPS:           60,
			LeadTicks:     4,
			DMax:          32,
			History:       2048,
			CatchupBudget: 2000,
			StartDelayMs:  800,
		},
	}
}

// Global is the process-wide configuration, populated by Load at startup.
var Global = Default()

// Load reads the config file named by LOCKSTEP_CONFIG (or defaultConfigPath
// if unset), merges it over the defaults, validates it, and stores the
// result in Global. A missing file is not an error — the defaults apply.
func Load() error {
	path := os.Getenv(ConfigEnvVar)
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := loadFrom(path)
	if err != nil {
		return err
	}
	Global = cfg
	return nil
}

// Reload re-reads the config file at path and, on success, replaces Global.
func Reload(path string) error {
	cfg, err := loadFrom(path)
	if err != nil {
		return err
	}
	Global = cfg
	return nil
}

func loadFrom(path string) (Config, error) {
	cfg := Default()

	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := json.Unmarshal(buf, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.verify(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// verify enforces the constant invariants from spec §6.
func (c *Config) verify() error {
	if c.Net.TPS == 0 {
		return fmt.Errorf("tps must be > 0")
	}
	if c.Net.DMax < c.Net.LeadTicks {
		return fmt.Errorf("d_max (%d) must be >= lead_ticks (%d)", c.Net.DMax, c.Net.LeadTicks)
	}
	minHistory := int(c.Net.DMax + c.Net.LeadTicks)
	if c.Net.History <= minHistory {
		return fmt.Errorf("history (%d) must be > d_max+lead_ticks (%d)", c.Net.History, minHistory)
	}
	if c.Net.CatchupBudget == 0 {
		return fmt.Errorf("catchup_budget must be > 0")
	}
	return nil
}

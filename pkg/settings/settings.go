// Package settings manages persistent defaults for the dnaasctl CLI.
//
// Values resolve in order: built-in default, settings file, environment
// variable. The environment variables recognized are:
//
//	DNAAS_INVENTORY     inventory file path
//	DNAAS_DB            sqlite database path
//	DNAAS_PARALLELISM   device worker pool size
//	DNAAS_CMD_TIMEOUT   per-command read timeout (seconds)
//	DNAAS_SSH_TIMEOUT   SSH connect timeout (seconds)
//	DNAAS_GLOBAL_VLANS  global-scope VLAN range
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Defaults for everything a fresh install needs.
const (
	DefaultParallelism    = 10
	DefaultCommandTimeout = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultGlobalVLANs    = "100-999"
)

// Settings holds persistent CLI preferences and policy configuration.
type Settings struct {
	// InventoryPath is the device inventory file
	InventoryPath string `json:"inventory_path,omitempty"`

	// DBPath is the sqlite database file
	DBPath string `json:"db_path,omitempty"`

	// AuditLogPath is the change-attribution JSONL log
	AuditLogPath string `json:"audit_log_path,omitempty"`

	// Parallelism bounds the device worker pool
	Parallelism int `json:"parallelism,omitempty"`

	// CommandTimeoutSec is the per-command read timeout in seconds
	CommandTimeoutSec int `json:"command_timeout_sec,omitempty"`

	// ConnectTimeoutSec is the SSH connect timeout in seconds
	ConnectTimeoutSec int `json:"connect_timeout_sec,omitempty"`

	// GlobalVLANs is the VLAN range treated as globally scoped
	GlobalVLANs string `json:"global_vlans,omitempty"`

	// Admins bypass the VLAN-range permission check
	Admins []string `json:"admins,omitempty"`

	// UserVLANs maps a username to their permitted VLAN range spec
	UserVLANs map[string]string `json:"user_vlans,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "dnaas_settings.json"
	}
	return filepath.Join(home, ".dnaas", "settings.json")
}

// Load reads settings from the default location and applies environment
// overrides.
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path and applies environment
// overrides. A missing file yields defaults, not an error.
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}

	s.applyEnv()
	s.applyDefaults()
	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// CommandTimeout returns the per-command read timeout.
func (s *Settings) CommandTimeout() time.Duration {
	return time.Duration(s.CommandTimeoutSec) * time.Second
}

// ConnectTimeout returns the SSH connect timeout.
func (s *Settings) ConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutSec) * time.Second
}

func (s *Settings) applyEnv() {
	if v := os.Getenv("DNAAS_INVENTORY"); v != "" {
		s.InventoryPath = v
	}
	if v := os.Getenv("DNAAS_DB"); v != "" {
		s.DBPath = v
	}
	if v := os.Getenv("DNAAS_GLOBAL_VLANS"); v != "" {
		s.GlobalVLANs = v
	}
	if v := os.Getenv("DNAAS_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.Parallelism = n
		}
	}
	if v := os.Getenv("DNAAS_CMD_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.CommandTimeoutSec = n
		}
	}
	if v := os.Getenv("DNAAS_SSH_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.ConnectTimeoutSec = n
		}
	}
}

func (s *Settings) applyDefaults() {
	if s.Parallelism == 0 {
		s.Parallelism = DefaultParallelism
	}
	if s.CommandTimeoutSec == 0 {
		s.CommandTimeoutSec = int(DefaultCommandTimeout / time.Second)
	}
	if s.ConnectTimeoutSec == 0 {
		s.ConnectTimeoutSec = int(DefaultConnectTimeout / time.Second)
	}
	if s.GlobalVLANs == "" {
		s.GlobalVLANs = DefaultGlobalVLANs
	}
	if s.InventoryPath == "" {
		s.InventoryPath = "/etc/dnaas/inventory.yaml"
	}
	if s.DBPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			s.DBPath = filepath.Join(home, ".dnaas", "dnaas.db")
		} else {
			s.DBPath = "dnaas.db"
		}
	}
	if s.AuditLogPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			s.AuditLogPath = filepath.Join(home, ".dnaas", "audit.log")
		} else {
			s.AuditLogPath = "dnaas_audit.log"
		}
	}
}

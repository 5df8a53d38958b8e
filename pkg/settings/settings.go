// Package settings manages persistent user settings for the routewarden CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Settings holds persistent user preferences
type Settings struct {
	// DefaultProfile is used when -p is not specified
	DefaultProfile string `json:"default_profile,omitempty"`

	// ProfilesDir overrides the default profile directory
	ProfilesDir string `json:"profiles_dir,omitempty"`

	// SnapshotsDir overrides the default snapshot directory
	SnapshotsDir string `json:"snapshots_dir,omitempty"`

	// SnapshotKeep is the retention count applied by snapshot prune
	SnapshotKeep int `json:"snapshot_keep,omitempty"`

	// AuditLogPath overrides the default audit log location
	AuditLogPath string `json:"audit_log_path,omitempty"`

	// AuditMaxSizeMB rotates the audit log past this size
	AuditMaxSizeMB int `json:"audit_max_size_mb,omitempty"`

	// AuditMaxBackups caps rotated audit files kept
	AuditMaxBackups int `json:"audit_max_backups,omitempty"`

	// DNSTimeoutMS bounds one domain lookup
	DNSTimeoutMS int `json:"dns_timeout_ms,omitempty"`

	// ProbeMaxHops bounds the reachability trace
	ProbeMaxHops int `json:"probe_max_hops,omitempty"`

	// ProbeTimeoutMS bounds each probe hop
	ProbeTimeoutMS int `json:"probe_timeout_ms,omitempty"`
}

// BaseDir returns the routewarden state directory.
func BaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".routewarden"
	}
	return filepath.Join(home, ".routewarden")
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	return filepath.Join(BaseDir(), "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	// Ensure directory exists
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

// GetProfilesDir returns the profile directory (with fallback)
func (s *Settings) GetProfilesDir() string {
	if s.ProfilesDir != "" {
		return s.ProfilesDir
	}
	return filepath.Join(BaseDir(), "profiles")
}

// GetSnapshotsDir returns the snapshot directory (with fallback)
func (s *Settings) GetSnapshotsDir() string {
	if s.SnapshotsDir != "" {
		return s.SnapshotsDir
	}
	return filepath.Join(BaseDir(), "snapshots")
}

// GetAuditLogPath returns the audit log path (with fallback)
func (s *Settings) GetAuditLogPath() string {
	if s.AuditLogPath != "" {
		return s.AuditLogPath
	}
	return filepath.Join(BaseDir(), "audit.log")
}

// GetSnapshotKeep returns the snapshot retention count (with fallback)
func (s *Settings) GetSnapshotKeep() int {
	if s.SnapshotKeep > 0 {
		return s.SnapshotKeep
	}
	return 10
}

// Set assigns a settings key by name, as used by `settings set`.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "profile":
		s.DefaultProfile = value
	case "profiles-dir":
		s.ProfilesDir = value
	case "snapshots-dir":
		s.SnapshotsDir = value
	case "audit-log":
		s.AuditLogPath = value
	default:
		if err := s.setInt(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Settings) setInt(key, value string) error {
	var target *int
	switch key {
	case "snapshot-keep":
		target = &s.SnapshotKeep
	case "audit-max-size-mb":
		target = &s.AuditMaxSizeMB
	case "audit-max-backups":
		target = &s.AuditMaxBackups
	case "dns-timeout-ms":
		target = &s.DNSTimeoutMS
	case "probe-max-hops":
		target = &s.ProbeMaxHops
	case "probe-timeout-ms":
		target = &s.ProbeTimeoutMS
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	var n int
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n < 0 {
		return fmt.Errorf("setting %q wants a non-negative integer, got %q", key, value)
	}
	*target = n
	return nil
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}

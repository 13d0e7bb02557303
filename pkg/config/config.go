// Package config loads gpuswitch settings. Every file the switcher reads or
// writes is a field here so that tests and unusual distributions can relocate
// them.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultPath is where the optional configuration file lives.
const DefaultPath = "/etc/gpuswitch.toml"

// EnvPath overrides DefaultPath when set.
const EnvPath = "GPUSWITCH_CONFIG"

var (
	ErrEmptyPath    = errors.New("config: empty path")
	ErrEmptyCommand = errors.New("config: empty initramfs command")
	ErrBadLevel     = errors.New("config: unknown log level")
)

// Config holds all gpuswitch configuration.
type Config struct {
	Paths     Paths           `toml:"paths"`
	Initramfs InitramfsConfig `toml:"initramfs"`
	Logging   LoggingConfig   `toml:"logging"`
}

// Paths lists the state, modprobe and sysfs files.
type Paths struct {
	Profile            string `toml:"profile"`
	Blacklist          string `toml:"blacklist"`
	LegacyBlacklist    string `toml:"legacy_blacklist"`
	KMS                string `toml:"kms"`
	RuntimePM          string `toml:"runtimepm"`
	LastGfxBoot        string `toml:"last_gfx_boot"`
	DRMClass           string `toml:"drm_class"`
	ChassisType        string `toml:"chassis_type"`
	RuntimePMSupported string `toml:"runtimepm_supported"`
	RuntimePMEnabled   string `toml:"runtimepm_enabled"`
}

// InitramfsConfig controls the boot image rebuild.
type InitramfsConfig struct {
	Command []string `toml:"command"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the Ubuntu layout used by nvidia-prime.
func DefaultConfig() Config {
	return Config{
		Paths: Paths{
			Profile:            "/etc/prime-discrete",
			Blacklist:          "/lib/modprobe.d/blacklist-nvidia.conf",
			LegacyBlacklist:    "/etc/modprobe.d/blacklist-nvidia.conf",
			KMS:                "/lib/modprobe.d/nvidia-kms.conf",
			RuntimePM:          "/lib/modprobe.d/nvidia-runtimepm.conf",
			LastGfxBoot:        "/var/lib/ubuntu-drivers-common/last_gfx_boot",
			DRMClass:           "/sys/class/drm",
			ChassisType:        "/sys/devices/virtual/dmi/id/chassis_type",
			RuntimePMSupported: "/run/nvidia_runtimepm_supported",
			RuntimePMEnabled:   "/run/nvidia_runtimepm_enabled",
		},
		Initramfs: InitramfsConfig{
			Command: []string{"update-initramfs", "-u"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ResolvePath picks the config file: explicit flag, then GPUSWITCH_CONFIG,
// then DefaultPath.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads config from path, falling back to defaults when the file does
// not exist. Keys absent from the file keep their default value.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		slog.Warn("unknown config keys ignored", "path", path, "keys", undec)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that no path or command was blanked out.
func (c Config) Validate() error {
	p := c.Paths
	for name, v := range map[string]string{
		"profile":             p.Profile,
		"blacklist":           p.Blacklist,
		"legacy_blacklist":    p.LegacyBlacklist,
		"kms":                 p.KMS,
		"runtimepm":           p.RuntimePM,
		"last_gfx_boot":       p.LastGfxBoot,
		"drm_class":           p.DRMClass,
		"chassis_type":        p.ChassisType,
		"runtimepm_supported": p.RuntimePMSupported,
		"runtimepm_enabled":   p.RuntimePMEnabled,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: paths.%s", ErrEmptyPath, name)
		}
	}
	if len(c.Initramfs.Command) == 0 || c.Initramfs.Command[0] == "" {
		return ErrEmptyCommand
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrBadLevel, s)
	}
}

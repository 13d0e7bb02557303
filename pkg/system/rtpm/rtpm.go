//go:build linux

// Package rtpm reads the nvidia runtime power management markers that the
// driver's udev rules and systemd units drop under /run at boot.
package rtpm

import "github.com/ja7ad/gpuswitch/pkg/system/util"

const (
	DefaultSupportedPath = "/run/nvidia_runtimepm_supported"
	DefaultEnabledPath   = "/run/nvidia_runtimepm_enabled"
)

// Options is the modprobe line enabling fine-grained dynamic power management.
const Options = `options nvidia "NVreg_DynamicPowerManagement=0x02"` + "\n"

// Supported reports whether the GPU advertises runtime PM support.
func Supported(path string) bool { return util.Exists(path) }

// Enabled reports whether runtime PM is active for the current boot.
func Enabled(path string) bool { return util.Exists(path) }

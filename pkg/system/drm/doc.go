// Package drm probes the kernel DRM class tree and the cached last-boot
// graphics marker to decide whether the machine has an integrated GPU.
//
// Two probes are tried in order:
//
//   - the last_gfx_boot marker written at boot by ubuntu-drivers-common;
//     when present, its content alone decides.
//   - otherwise /sys/class/drm/card[0-9]+ is scanned, the first card whose
//     device/boot_vga is a positive integer is taken, and its device/vendor
//     is matched.
//
// A vendor token is considered integrated when it contains "8086" (Intel)
// or "1002" (AMD), ignoring case.
package drm

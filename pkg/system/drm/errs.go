package drm

import "errors"

var (
	// ErrNoBootVGA indicates that no card under the DRM class directory is
	// flagged as the firmware boot display.
	ErrNoBootVGA = errors.New("drm: no boot_vga card")

	// ErrNoCards indicates that the DRM class directory has no card entries.
	ErrNoCards = errors.New("drm: no cards")
)

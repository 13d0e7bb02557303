package switcher

import "errors"

var (
	// ErrNoProfile indicates that no profile has been persisted yet, or the
	// persisted file could not be read or understood.
	ErrNoProfile = errors.New("switcher: no profile found")

	// ErrNoIntegratedGPU indicates that neither the last-boot marker nor the
	// DRM boot_vga scan found an Intel or AMD display device.
	ErrNoIntegratedGPU = errors.New("switcher: integrated GPU not found")

	// ErrEmptyCommand indicates an initramfs updater without a command.
	ErrEmptyCommand = errors.New("switcher: empty boot image command")
)

//go:build linux

package drm

import (
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/ja7ad/gpuswitch/pkg/system/util"
)

const (
	DefaultClassDir   = "/sys/class/drm"
	DefaultMarkerPath = "/var/lib/ubuntu-drivers-common/last_gfx_boot"

	VendorIntel  = "8086"
	VendorAMD    = "1002"
	VendorNvidia = "10de"
)

var cardRe = regexp.MustCompile(`^card([0-9]+)$`)

// Source names the probe that answered DetectIntegrated.
type Source string

const (
	SourceNone   Source = "none"
	SourceMarker Source = "marker"
	SourceSysfs  Source = "sysfs"
)

// Card is one DRM card entry (connectors such as card0-eDP-1 are not cards).
type Card struct {
	Name    string
	Index   int
	Vendor  string
	BootVGA bool
}

// Integrated reports whether the card vendor is Intel or AMD.
func (c Card) Integrated() bool { return IsIntegratedVendor(c.Vendor) }

// IsIntegratedVendor matches a vendor token ("0x8086", "8086:9a49", ...)
// against the integrated vendor ids.
func IsIntegratedVendor(token string) bool {
	t := strings.ToLower(token)
	return strings.Contains(t, VendorIntel) || strings.Contains(t, VendorAMD)
}

// Cards lists card entries under dir ordered by card index.
// Unreadable attributes leave the corresponding field empty.
func Cards(dir string) ([]Card, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var cards []Card
	for _, e := range entries {
		m := cardRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		cards = append(cards, readCard(dir, e.Name(), idx))
	}
	if len(cards) == 0 {
		return nil, ErrNoCards
	}
	slices.SortFunc(cards, func(a, b Card) int { return a.Index - b.Index })
	return cards, nil
}

func readCard(dir, name string, idx int) Card {
	dev := filepath.Join(dir, name, "device")
	c := Card{Name: name, Index: idx}
	c.Vendor, _ = util.ReadTrimmed(filepath.Join(dev, "vendor"))
	if s, err := util.ReadTrimmed(filepath.Join(dev, "boot_vga")); err == nil {
		v, err := strconv.Atoi(s)
		c.BootVGA = err == nil && v > 0
	}
	return c
}

// BootVGACard returns the first card flagged as boot display.
func BootVGACard(dir string) (Card, error) {
	cards, err := Cards(dir)
	if err != nil {
		return Card{}, err
	}
	for _, c := range cards {
		if c.BootVGA {
			return c, nil
		}
	}
	return Card{}, ErrNoBootVGA
}

// DetectIntegrated runs the marker probe, then the sysfs probe when the
// marker file does not exist. The sysfs probe matches the vendor it has just
// read from the boot_vga card.
func DetectIntegrated(markerPath, classDir string) (bool, Source) {
	if util.Exists(markerPath) {
		content, err := util.ReadTrimmed(markerPath)
		if err == nil && IsIntegratedVendor(content) {
			return true, SourceMarker
		}
		return false, SourceMarker
	}

	card, err := BootVGACard(classDir)
	if err != nil {
		return false, SourceNone
	}
	return card.Integrated(), SourceSysfs
}

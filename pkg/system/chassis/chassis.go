//go:build linux

package chassis

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ja7ad/gpuswitch/pkg/system/util"
)

// DefaultPath is the DMI attribute holding the SMBIOS chassis type code.
const DefaultPath = "/sys/devices/virtual/dmi/id/chassis_type"

// ErrBadType indicates that the chassis_type attribute was empty or not a number.
var ErrBadType = errors.New("chassis: malformed chassis_type")

// Type is an SMBIOS system enclosure type (DMTF DSP0134, 7.4.1).
type Type int

const (
	Unknown     Type = 0
	Other       Type = 1
	Desktop     Type = 3
	LowProfile  Type = 4
	Tower       Type = 7
	Portable    Type = 8
	Laptop      Type = 9
	Notebook    Type = 10
	AllInOne    Type = 13
	SubNotebook Type = 14
	Server      Type = 17 // main server chassis
	Tablet      Type = 30
	Convertible Type = 31
	Detachable  Type = 32
	MiniPC      Type = 35
)

func (t Type) String() string {
	switch t {
	case Other:
		return "other"
	case Desktop:
		return "desktop"
	case LowProfile:
		return "low-profile desktop"
	case Tower:
		return "tower"
	case Portable:
		return "portable"
	case Laptop:
		return "laptop"
	case Notebook:
		return "notebook"
	case AllInOne:
		return "all-in-one"
	case SubNotebook:
		return "sub-notebook"
	case Server:
		return "server"
	case Tablet:
		return "tablet"
	case Convertible:
		return "convertible"
	case Detachable:
		return "detachable"
	case MiniPC:
		return "mini pc"
	default:
		return fmt.Sprintf("unknown (%d)", int(t))
	}
}

// IsLaptop reports whether the chassis runs on battery in the sense that
// matters for nvidia runtime power management.
func (t Type) IsLaptop() bool {
	switch t {
	case Portable, Laptop, Notebook, Convertible:
		return true
	default:
		return false
	}
}

// Detect reads the chassis type code from path.
func Detect(path string) (Type, error) {
	s, err := util.ReadTrimmed(path)
	if err != nil {
		return Unknown, fmt.Errorf("read chassis type: %w", err)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return Unknown, ErrBadType
	}
	return Type(v), nil
}

// IsLaptop is Detect followed by Type.IsLaptop. Any read or parse error
// classifies the machine as not a laptop.
func IsLaptop(path string) bool {
	t, err := Detect(path)
	if err != nil {
		return false
	}
	return t.IsLaptop()
}

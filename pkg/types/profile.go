package types

import "errors"

// ErrUnknownProfile is returned when a name does not map to a profile that can be enabled.
var ErrUnknownProfile = errors.New("types: unknown profile")

// Profile is a graphics configuration mode.
type Profile string

const (
	Nvidia     Profile = "nvidia"     // discrete GPU only
	Integrated Profile = "integrated" // integrated GPU only, nvidia modules blacklisted
	OnDemand   Profile = "on-demand"  // hybrid, nvidia loaded and used per application
	Unknown    Profile = "unknown"    // nothing persisted yet
)

// legacyIntel is accepted on input for compatibility with older tooling.
const legacyIntel = "intel"

// ParseProfile maps a command-line name to a Profile.
// "intel" is normalised to Integrated. Unknown is never returned.
func ParseProfile(s string) (Profile, error) {
	switch s {
	case string(Nvidia):
		return Nvidia, nil
	case string(Integrated), legacyIntel:
		return Integrated, nil
	case string(OnDemand):
		return OnDemand, nil
	default:
		return "", ErrUnknownProfile
	}
}

// Valid reports whether p can be enabled.
func (p Profile) Valid() bool {
	switch p {
	case Nvidia, Integrated, OnDemand:
		return true
	default:
		return false
	}
}

func (p Profile) String() string {
	if p == "" {
		return string(Unknown)
	}
	return string(p)
}

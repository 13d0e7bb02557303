//go:build linux

package switcher

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ja7ad/gpuswitch/pkg/config"
	"github.com/ja7ad/gpuswitch/pkg/system/chassis"
	"github.com/ja7ad/gpuswitch/pkg/system/drm"
	"github.com/ja7ad/gpuswitch/pkg/system/rtpm"
	"github.com/ja7ad/gpuswitch/pkg/system/util"
	"github.com/ja7ad/gpuswitch/pkg/types"
)

// Updater regenerates the boot image after modprobe configuration changed.
type Updater interface {
	Update() error
}

// Switcher applies profiles by rewriting a fixed set of files.
// It holds no state beyond its paths; two processes enabling profiles at the
// same time race on those files.
type Switcher struct {
	paths   config.Paths
	updater Updater
	log     *slog.Logger
}

type Option func(*Switcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Switcher) { s.log = l }
}

// WithUpdater replaces the boot image updater.
func WithUpdater(u Updater) Option {
	return func(s *Switcher) { s.updater = u }
}

// New builds a Switcher. Without WithUpdater the default update-initramfs
// command is used, reporting progress on stdout.
func New(paths config.Paths, opts ...Option) *Switcher {
	s := &Switcher{paths: paths, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	if s.updater == nil {
		s.updater = &InitramfsUpdater{
			Command: config.DefaultConfig().Initramfs.Command,
			Out:     os.Stdout,
			Log:     s.log,
		}
	}
	return s
}

// Query returns the persisted profile. A missing, unreadable or unrecognised
// file yields ErrNoProfile.
func (s *Switcher) Query() (types.Profile, error) {
	raw, err := util.ReadTrimmed(s.paths.Profile)
	if err != nil {
		s.log.Debug("read profile", "path", s.paths.Profile, "err", err)
		return types.Unknown, ErrNoProfile
	}
	p, err := types.ParseProfile(raw)
	if err != nil {
		s.log.Debug("unrecognised profile", "path", s.paths.Profile, "content", raw)
		return types.Unknown, ErrNoProfile
	}
	return p, nil
}

// Current is Query with the error folded into types.Unknown.
func (s *Switcher) Current() types.Profile {
	p, err := s.Query()
	if err != nil {
		return types.Unknown
	}
	return p
}

// Enable switches to profile p. Nothing is touched unless an integrated GPU
// is detected. Files written before a failing step stay in place.
func (s *Switcher) Enable(p types.Profile) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %q", types.ErrUnknownProfile, string(p))
	}

	ok, src := drm.DetectIntegrated(s.paths.LastGfxBoot, s.paths.DRMClass)
	if !ok {
		s.log.Error("no integrated GPU detected", "probe", src)
		return ErrNoIntegratedGPU
	}
	s.log.Debug("integrated GPU detected", "probe", src)

	s.removeBestEffort(s.paths.LegacyBlacklist)

	var err error
	switch p {
	case types.Nvidia:
		err = s.enableNvidia()
	case types.OnDemand:
		err = s.enableOnDemand()
	case types.Integrated:
		err = s.enableIntegrated()
	}
	if err != nil {
		return err
	}

	if err := s.updater.Update(); err != nil {
		return fmt.Errorf("update boot image: %w", err)
	}

	if err := util.WriteFile(s.paths.Profile, p.String()+"\n"); err != nil {
		return fmt.Errorf("persist profile: %w", err)
	}
	s.log.Info("profile enabled", "profile", p)
	return nil
}

func (s *Switcher) enableNvidia() error {
	s.removeBestEffort(s.paths.Blacklist)
	s.disableRuntimePM()
	return s.ensureKMS()
}

func (s *Switcher) enableOnDemand() error {
	if s.runtimePMCapable() {
		if err := util.WriteFile(s.paths.RuntimePM, rtpm.Options); err != nil {
			return fmt.Errorf("write runtimepm config: %w", err)
		}
		s.log.Debug("runtime power management enabled", "path", s.paths.RuntimePM)
	} else {
		s.disableRuntimePM()
	}
	if err := s.ensureKMS(); err != nil {
		return err
	}
	return s.disableNvidia(true)
}

func (s *Switcher) enableIntegrated() error {
	if removed := s.removeBestEffort(s.paths.KMS); removed {
		s.log.Info("removed kms config", "path", s.paths.KMS)
	}
	s.disableRuntimePM()
	return s.disableNvidia(false)
}

// disableNvidia takes the discrete GPU away from the display stack. With
// keepModules the modules stay loadable and only the blacklist is cleared;
// otherwise the blacklist is rewritten from scratch.
func (s *Switcher) disableNvidia(keepModules bool) error {
	if keepModules {
		s.removeBestEffort(s.paths.Blacklist)
		return nil
	}
	if err := util.WriteFile(s.paths.Blacklist, blacklistContent); err != nil {
		return fmt.Errorf("write blacklist: %w", err)
	}
	return nil
}

func (s *Switcher) runtimePMCapable() bool {
	laptop := chassis.IsLaptop(s.paths.ChassisType)
	supported := rtpm.Supported(s.paths.RuntimePMSupported)
	s.log.Debug("runtime power management probe", "laptop", laptop, "supported", supported)
	return laptop && supported
}

func (s *Switcher) disableRuntimePM() {
	s.removeBestEffort(s.paths.RuntimePM)
}

// ensureKMS writes the modeset config only when it is missing so that user
// edits survive re-enabling a profile.
func (s *Switcher) ensureKMS() error {
	written, err := util.WriteIfMissing(s.paths.KMS, kmsContent)
	if err != nil {
		return fmt.Errorf("write kms config: %w", err)
	}
	if written {
		s.log.Debug("kms config created", "path", s.paths.KMS)
	}
	return nil
}

func (s *Switcher) removeBestEffort(path string) bool {
	removed, err := util.RemoveIfExists(path)
	if err != nil {
		s.log.Debug("remove failed", "path", path, "err", err)
	}
	return removed
}

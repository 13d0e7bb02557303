//go:build linux

package switcher

import (
	"github.com/ja7ad/gpuswitch/pkg/system/chassis"
	"github.com/ja7ad/gpuswitch/pkg/system/drm"
	"github.com/ja7ad/gpuswitch/pkg/system/rtpm"
	"github.com/ja7ad/gpuswitch/pkg/system/util"
	"github.com/ja7ad/gpuswitch/pkg/types"
)

// Status is a read-only view of the hardware probes and the files the
// switcher manages.
type Status struct {
	Profile types.Profile

	Chassis          chassis.Type
	Laptop           bool
	Integrated       bool
	IntegratedProbe  drm.Source
	RuntimePMSupport bool
	RuntimePMActive  bool

	Blacklist       bool
	LegacyBlacklist bool
	KMS             bool
	RuntimePMConfig bool
}

// Status gathers the current state without modifying anything.
func (s *Switcher) Status() Status {
	ct, err := chassis.Detect(s.paths.ChassisType)
	if err != nil {
		s.log.Debug("chassis type", "err", err)
	}
	igpu, src := drm.DetectIntegrated(s.paths.LastGfxBoot, s.paths.DRMClass)

	return Status{
		Profile:          s.Current(),
		Chassis:          ct,
		Laptop:           ct.IsLaptop(),
		Integrated:       igpu,
		IntegratedProbe:  src,
		RuntimePMSupport: rtpm.Supported(s.paths.RuntimePMSupported),
		RuntimePMActive:  rtpm.Enabled(s.paths.RuntimePMEnabled),
		Blacklist:        util.Exists(s.paths.Blacklist),
		LegacyBlacklist:  util.Exists(s.paths.LegacyBlacklist),
		KMS:              util.Exists(s.paths.KMS),
		RuntimePMConfig:  util.Exists(s.paths.RuntimePM),
	}
}

//go:build linux

package switcher

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ja7ad/gpuswitch/pkg/config"
	"github.com/ja7ad/gpuswitch/pkg/system/rtpm"
	"github.com/ja7ad/gpuswitch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpdater struct {
	calls int
	err   error
}

func (f *fakeUpdater) Update() error {
	f.calls++
	return f.err
}

// host is a fake root with every path the switcher touches.
type host struct {
	t     *testing.T
	root  string
	paths config.Paths
	upd   *fakeUpdater
}

func newHost(t *testing.T) *host {
	t.Helper()
	root := t.TempDir()
	j := func(p string) string { return filepath.Join(root, p) }
	return &host{
		t:    t,
		root: root,
		paths: config.Paths{
			Profile:            j("etc/prime-discrete"),
			Blacklist:          j("lib/modprobe.d/blacklist-nvidia.conf"),
			LegacyBlacklist:    j("etc/modprobe.d/blacklist-nvidia.conf"),
			KMS:                j("lib/modprobe.d/nvidia-kms.conf"),
			RuntimePM:          j("lib/modprobe.d/nvidia-runtimepm.conf"),
			LastGfxBoot:        j("var/lib/ubuntu-drivers-common/last_gfx_boot"),
			DRMClass:           j("sys/class/drm"),
			ChassisType:        j("sys/devices/virtual/dmi/id/chassis_type"),
			RuntimePMSupported: j("run/nvidia_runtimepm_supported"),
			RuntimePMEnabled:   j("run/nvidia_runtimepm_enabled"),
		},
		upd: &fakeUpdater{},
	}
}

func (h *host) switcher() *Switcher {
	return New(h.paths,
		WithUpdater(h.upd),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (h *host) write(path, content string) {
	h.t.Helper()
	require.NoError(h.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
}

func (h *host) read(path string) string {
	h.t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(h.t, err)
	return string(b)
}

func (h *host) exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (h *host) intelMarker() { h.write(h.paths.LastGfxBoot, "8086:9a49\n") }

func (h *host) laptop(supported bool) {
	h.write(h.paths.ChassisType, "10\n")
	if supported {
		h.write(h.paths.RuntimePMSupported, "")
	}
}

func (h *host) card(name, vendor, bootVGA string) {
	dev := filepath.Join(h.paths.DRMClass, name, "device")
	h.write(filepath.Join(dev, "vendor"), vendor+"\n")
	h.write(filepath.Join(dev, "boot_vga"), bootVGA+"\n")
}

// snapshot maps every regular file under root to its content and mtime.
func (h *host) snapshot() map[string]string {
	h.t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(h.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[p] = info.ModTime().String() + "|" + string(b)
		return nil
	})
	require.NoError(h.t, err)
	return out
}

func TestEnable_PersistsCanonicalName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"nvidia", "nvidia"},
		{"integrated", "integrated"},
		{"intel", "integrated"},
		{"on-demand", "on-demand"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			h := newHost(t)
			h.intelMarker()
			s := h.switcher()

			p, err := types.ParseProfile(tc.in)
			require.NoError(t, err)
			require.NoError(t, s.Enable(p))

			assert.Equal(t, tc.want+"\n", h.read(h.paths.Profile))
			assert.Equal(t, 1, h.upd.calls)

			got, err := s.Query()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestQuery_NoProfile(t *testing.T) {
	h := newHost(t)
	s := h.switcher()

	_, err := s.Query()
	assert.ErrorIs(t, err, ErrNoProfile)
	assert.Equal(t, types.Unknown, s.Current())

	h.write(h.paths.Profile, "")
	_, err = s.Query()
	assert.ErrorIs(t, err, ErrNoProfile)

	h.write(h.paths.Profile, "garbage\n")
	_, err = s.Query()
	assert.ErrorIs(t, err, ErrNoProfile)
}

func TestQuery_LegacyIntel(t *testing.T) {
	h := newHost(t)
	h.write(h.paths.Profile, "intel\n")

	p, err := h.switcher().Query()
	require.NoError(t, err)
	assert.Equal(t, types.Integrated, p)
}

func TestEnable_NoIntegratedGPU_NoMutation(t *testing.T) {
	for _, p := range []types.Profile{types.Nvidia, types.Integrated, types.OnDemand} {
		t.Run(p.String(), func(t *testing.T) {
			h := newHost(t)
			h.laptop(true)
			h.card("card0", "0x10de", "1")
			h.write(h.paths.LegacyBlacklist, "blacklist nvidia\n")
			h.write(h.paths.Blacklist, "blacklist nvidia\n")
			h.write(h.paths.KMS, "custom\n")
			before := h.snapshot()

			err := h.switcher().Enable(p)
			assert.ErrorIs(t, err, ErrNoIntegratedGPU)
			assert.Equal(t, before, h.snapshot())
			assert.Zero(t, h.upd.calls)
		})
	}
}

func TestEnable_SysfsFallback(t *testing.T) {
	h := newHost(t)
	h.card("card0", "0x10de", "0")
	h.card("card1", "0x8086", "1")

	require.NoError(t, h.switcher().Enable(types.Nvidia))
	assert.Equal(t, "nvidia\n", h.read(h.paths.Profile))
}

func TestEnable_InvalidProfile(t *testing.T) {
	h := newHost(t)
	h.intelMarker()

	err := h.switcher().Enable(types.Unknown)
	assert.ErrorIs(t, err, types.ErrUnknownProfile)
	assert.False(t, h.exists(h.paths.Profile))
}

func TestEnable_Nvidia(t *testing.T) {
	h := newHost(t)
	h.intelMarker()
	h.write(h.paths.LegacyBlacklist, "old\n")
	h.write(h.paths.Blacklist, blacklistContent)
	h.write(h.paths.RuntimePM, rtpm.Options)

	s := h.switcher()
	require.NoError(t, s.Enable(types.Nvidia))

	assert.False(t, h.exists(h.paths.LegacyBlacklist))
	assert.False(t, h.exists(h.paths.Blacklist))
	assert.False(t, h.exists(h.paths.RuntimePM))
	assert.Equal(t, kmsContent, h.read(h.paths.KMS))
}

func TestEnable_Nvidia_KeepsExistingKMS(t *testing.T) {
	h := newHost(t)
	h.intelMarker()
	s := h.switcher()
	require.NoError(t, s.Enable(types.Nvidia))

	// user edit, backdated so a rewrite would be visible
	h.write(h.paths.KMS, "options nvidia-drm modeset=0\n")
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(h.paths.KMS, old, old))

	require.NoError(t, s.Enable(types.Nvidia))
	assert.Equal(t, "options nvidia-drm modeset=0\n", h.read(h.paths.KMS))
	st, err := os.Stat(h.paths.KMS)
	require.NoError(t, err)
	assert.True(t, st.ModTime().Equal(old))
}

func TestEnable_Integrated(t *testing.T) {
	h := newHost(t)
	h.intelMarker()
	h.write(h.paths.KMS, kmsContent)
	h.write(h.paths.Blacklist, "blacklist nouveau\n")
	h.write(h.paths.RuntimePM, rtpm.Options)

	require.NoError(t, h.switcher().Enable(types.Integrated))

	assert.False(t, h.exists(h.paths.KMS))
	assert.False(t, h.exists(h.paths.RuntimePM))

	got := h.read(h.paths.Blacklist)
	assert.Equal(t, blacklistContent, got)

	var blacklisted, aliased []string
	for _, line := range strings.Split(got, "\n") {
		f := strings.Fields(line)
		switch {
		case len(f) == 2 && f[0] == "blacklist":
			blacklisted = append(blacklisted, f[1])
		case len(f) == 3 && f[0] == "alias" && f[2] == "off":
			aliased = append(aliased, f[1])
		}
	}
	mods := []string{"nvidia", "nvidia-drm", "nvidia-modeset"}
	assert.Equal(t, mods, blacklisted)
	assert.Equal(t, mods, aliased)
}

func TestEnable_OnDemand(t *testing.T) {
	t.Run("laptop_with_support", func(t *testing.T) {
		h := newHost(t)
		h.intelMarker()
		h.laptop(true)
		h.write(h.paths.Blacklist, blacklistContent)
		h.write(h.paths.LegacyBlacklist, blacklistContent)

		require.NoError(t, h.switcher().Enable(types.OnDemand))

		assert.Equal(t, rtpm.Options, h.read(h.paths.RuntimePM))
		assert.Contains(t, h.read(h.paths.RuntimePM), "NVreg_DynamicPowerManagement=0x02")
		assert.Equal(t, kmsContent, h.read(h.paths.KMS))
		assert.False(t, h.exists(h.paths.Blacklist))
		assert.False(t, h.exists(h.paths.LegacyBlacklist))
	})
	t.Run("laptop_without_support", func(t *testing.T) {
		h := newHost(t)
		h.intelMarker()
		h.laptop(false)

		require.NoError(t, h.switcher().Enable(types.OnDemand))
		assert.False(t, h.exists(h.paths.RuntimePM))
	})
	t.Run("desktop_with_support", func(t *testing.T) {
		h := newHost(t)
		h.intelMarker()
		h.write(h.paths.ChassisType, "3\n")
		h.write(h.paths.RuntimePMSupported, "")

		require.NoError(t, h.switcher().Enable(types.OnDemand))
		assert.False(t, h.exists(h.paths.RuntimePM))
		assert.True(t, h.exists(h.paths.KMS))
	})
	t.Run("unknown_chassis", func(t *testing.T) {
		h := newHost(t)
		h.intelMarker()
		h.write(h.paths.RuntimePMSupported, "")

		require.NoError(t, h.switcher().Enable(types.OnDemand))
		assert.False(t, h.exists(h.paths.RuntimePM))
	})
}

func TestEnable_UpdaterFailure_NoRollback(t *testing.T) {
	h := newHost(t)
	h.intelMarker()
	h.upd.err = errors.New("boom")

	err := h.switcher().Enable(types.Integrated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	// configuration stays written, profile is not persisted
	assert.Equal(t, blacklistContent, h.read(h.paths.Blacklist))
	assert.False(t, h.exists(h.paths.Profile))
}

func TestEnable_SwitchSequence(t *testing.T) {
	h := newHost(t)
	h.intelMarker()
	h.laptop(true)
	s := h.switcher()

	require.NoError(t, s.Enable(types.Integrated))
	assert.True(t, h.exists(h.paths.Blacklist))
	assert.False(t, h.exists(h.paths.KMS))

	require.NoError(t, s.Enable(types.OnDemand))
	assert.False(t, h.exists(h.paths.Blacklist))
	assert.True(t, h.exists(h.paths.KMS))
	assert.True(t, h.exists(h.paths.RuntimePM))

	require.NoError(t, s.Enable(types.Nvidia))
	assert.False(t, h.exists(h.paths.RuntimePM))
	assert.True(t, h.exists(h.paths.KMS))

	assert.Equal(t, types.Nvidia, s.Current())
	assert.Equal(t, 3, h.upd.calls)
}

func TestStatus(t *testing.T) {
	h := newHost(t)
	h.laptop(true)
	h.write(h.paths.RuntimePMEnabled, "")
	h.card("card0", "0x8086", "1")
	h.write(h.paths.KMS, kmsContent)
	h.write(h.paths.Profile, "on-demand\n")

	st := h.switcher().Status()
	assert.Equal(t, types.OnDemand, st.Profile)
	assert.True(t, st.Laptop)
	assert.Equal(t, "notebook", st.Chassis.String())
	assert.True(t, st.Integrated)
	assert.Equal(t, "sysfs", string(st.IntegratedProbe))
	assert.True(t, st.RuntimePMSupport)
	assert.True(t, st.RuntimePMActive)
	assert.True(t, st.KMS)
	assert.False(t, st.Blacklist)
	assert.False(t, st.LegacyBlacklist)
	assert.False(t, st.RuntimePMConfig)
}

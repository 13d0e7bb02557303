package switcher

const generatedHeader = "# This file was generated by gpuswitch\n"

// blacklistContent disables every nvidia kernel module that could claim
// the discrete GPU.
const blacklistContent = generatedHeader +
	"# Do not modify\n" +
	"blacklist nvidia\n" +
	"blacklist nvidia-drm\n" +
	"blacklist nvidia-modeset\n" +
	"alias nvidia off\n" +
	"alias nvidia-drm off\n" +
	"alias nvidia-modeset off\n"

const kmsContent = generatedHeader +
	"# Set value to 0 to disable modesetting\n" +
	"options nvidia-drm modeset=1\n"

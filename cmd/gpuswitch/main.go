//go:build linux

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/ja7ad/gpuswitch/pkg/config"
	"github.com/ja7ad/gpuswitch/pkg/switcher"
	"github.com/ja7ad/gpuswitch/pkg/types"
)

const (
	cmdQuery  = "query"
	cmdStatus = "status"
)

var commands = []string{"nvidia", "integrated", "intel", "on-demand", cmdQuery, cmdStatus}

var (
	errUsage   = errors.New("usage")
	errNotRoot = errors.New("root privileges are required for this operation")
)

type opts struct {
	configPath string
	verbose    bool
}

// env is what the command needs from the process; tests replace it.
type env struct {
	stdout  io.Writer
	stderr  io.Writer
	geteuid func() int
}

func main() {
	os.Exit(execute(os.Args[1:], env{
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		geteuid: unix.Geteuid,
	}))
}

func execute(args []string, e env) int {
	var o opts

	root := &cobra.Command{
		Use:   "gpuswitch nvidia|integrated|on-demand|query|status",
		Short: "Select the active GPU driver profile",
		Long: `gpuswitch selects the graphics profile of a hybrid GPU Linux system.

  nvidia      use the discrete NVIDIA GPU for everything
  integrated  use the integrated GPU only and blacklist the nvidia modules
              ("intel" is accepted as an alias)
  on-demand   render on the integrated GPU, offload to NVIDIA per application;
              enables runtime power management on supported laptops
  query       print the persisted profile
  status      show hardware probes and managed files

Changing the profile rewrites files under /lib/modprobe.d and rebuilds the
initramfs; it requires root and takes effect after a reboot.`,
		ValidArgs:     commands,
		Args:          validateArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(o, e, args[0])
		},
	}
	root.SetArgs(args)
	root.SetOut(e.stdout)
	root.SetErr(e.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	root.Flags().StringVarP(&o.configPath, "config", "c", "", "configuration file (default $"+config.EnvPath+" or "+config.DefaultPath+")")
	root.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(e.stderr, root.UsageString())
			return 1
		}
		fmt.Fprintln(e.stderr, "Error:", err)
		return 1
	}
	return 0
}

func validateArgs(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: expected exactly one argument, got %d", errUsage, len(args))
	}
	if !slices.Contains(commands, args[0]) {
		return fmt.Errorf("%w: unrecognised argument %q", errUsage, args[0])
	}
	return nil
}

func run(o opts, e env, arg string) error {
	cfg, err := config.Load(config.ResolvePath(o.configPath))
	if err != nil {
		return err
	}

	level, _ := config.ParseLevel(cfg.Logging.Level)
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(e.stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	sw := switcher.New(cfg.Paths,
		switcher.WithLogger(logger),
		switcher.WithUpdater(&switcher.InitramfsUpdater{
			Command: cfg.Initramfs.Command,
			Out:     e.stdout,
			Log:     logger,
		}),
	)

	switch arg {
	case cmdQuery:
		p, err := sw.Query()
		if err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, p)
		return nil
	case cmdStatus:
		printStatus(e.stdout, sw.Status())
		return nil
	}

	if e.geteuid() != 0 {
		return errNotRoot
	}
	p, err := types.ParseProfile(arg)
	if err != nil {
		return err
	}
	return sw.Enable(p)
}

func printStatus(w io.Writer, st switcher.Status) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "profile:\t%s\n", st.Profile)
	fmt.Fprintf(tw, "chassis:\t%s (laptop: %s)\n", st.Chassis, yesNo(st.Laptop))
	fmt.Fprintf(tw, "integrated gpu:\t%s (probe: %s)\n", yesNo(st.Integrated), st.IntegratedProbe)
	fmt.Fprintf(tw, "runtime pm:\tsupported: %s, enabled: %s\n", yesNo(st.RuntimePMSupport), yesNo(st.RuntimePMActive))
	fmt.Fprintf(tw, "nvidia blacklist:\t%s\n", present(st.Blacklist))
	fmt.Fprintf(tw, "legacy blacklist:\t%s\n", present(st.LegacyBlacklist))
	fmt.Fprintf(tw, "kms config:\t%s\n", present(st.KMS))
	fmt.Fprintf(tw, "runtime pm config:\t%s\n", present(st.RuntimePMConfig))
	tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func present(b bool) string {
	if b {
		return "present"
	}
	return "absent"
}

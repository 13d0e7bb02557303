//go:build linux

package switcher

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const defaultInterval = 200 * time.Millisecond

// InitramfsUpdater runs the boot image command and waits for it while
// drawing a progress indicator on Out. The command cannot be interrupted
// once started.
type InitramfsUpdater struct {
	Command  []string      // e.g. update-initramfs -u
	Out      io.Writer     // progress output; nil disables it
	Interval time.Duration // indicator refresh, 200ms when zero
	Log      *slog.Logger
}

func (u *InitramfsUpdater) Update() error {
	if len(u.Command) == 0 || u.Command[0] == "" {
		return ErrEmptyCommand
	}
	log := u.Log
	if log == nil {
		log = slog.Default()
	}
	interval := u.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	out := u.Out
	if out == nil {
		out = io.Discard
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(u.Command[0], u.Command[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	name := strings.Join(u.Command, " ")
	log.Debug("running boot image update", "cmd", name)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	p := newProgress(out, "Updating the initramfs")
	p.start()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var err error
wait:
	for {
		select {
		case err = <-done:
			break wait
		case <-ticker.C:
			p.tick()
		}
	}
	p.finish(err == nil)

	log.Debug("boot image update output", "stdout", stdout.String())
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

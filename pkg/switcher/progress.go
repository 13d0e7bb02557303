package switcher

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// ─── Progress ───────────────────────────────────────────────────────────────
// Rotating indicator for the boot image rebuild:
//   Updating the initramfs... |
// On a non-terminal writer only the start and result lines are printed.

var frames = [...]string{"|", "/", "-", "\\"}

type progress struct {
	w       io.Writer
	label   string
	tty     bool
	frame   int
	stopped bool // writer failed; nothing more is printed
}

func newProgress(w io.Writer, label string) *progress {
	return &progress{w: w, label: label, tty: isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *progress) start() {
	if p.tty {
		p.printf("%s... %s", p.label, frames[0])
		return
	}
	p.printf("%s...\n", p.label)
}

func (p *progress) tick() {
	if !p.tty {
		return
	}
	p.frame = (p.frame + 1) % len(frames)
	p.printf("\r\033[K%s... %s", p.label, frames[p.frame])
}

func (p *progress) finish(ok bool) {
	result := "done"
	if !ok {
		result = "failed"
	}
	if p.tty {
		p.printf("\r\033[K%s... %s\n", p.label, result)
		return
	}
	p.printf("%s... %s\n", p.label, result)
}

func (p *progress) printf(format string, a ...any) {
	if p.stopped {
		return
	}
	if _, err := fmt.Fprintf(p.w, format, a...); err != nil {
		// broken pipe: drop the indicator, the rebuild keeps going
		p.stopped = true
	}
}

package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/canfiles/canfiles/internal/constants"
	"github.com/canfiles/canfiles/internal/models"
)

// UploadUI draws upload bars with mpb when out is a terminal and plain
// lines otherwise.
type UploadUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
}

// NewUploadUI creates an upload UI writing to out.
func NewUploadUI(out io.Writer) *UploadUI {
	isTerminal := false
	if f, ok := out.(*os.File); ok {
		isTerminal = term.IsTerminal(int(f.Fd()))
		if isTerminal {
			enableANSIOnWindows(f)
		}
	}

	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(constants.ProgressTickInterval),
			mpb.WithWidth(80),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &UploadUI{progress: p, out: out, isTerminal: isTerminal}
}

// UploadBar is the bar for one upload session. Values are percentages.
type UploadBar struct {
	ui      *UploadUI
	bar     *mpb.Bar
	name    string
	size    models.ByteCount
	started time.Time

	mu   sync.Mutex
	last int
	done bool
}

// AddBar starts a bar for name.
func (u *UploadUI) AddBar(name string, size models.ByteCount) *UploadBar {
	b := &UploadBar{ui: u, name: name, size: size, started: time.Now()}
	label := fmt.Sprintf("%s (%s)", truncatePath(name, 2), size.Human())

	if u.isTerminal {
		b.bar = u.progress.New(int64(constants.ProgressComplete),
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(label, decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(
				decor.Percentage(decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Fprintf(u.out, "Uploading %s\n", label)
	}
	return b
}

// Set moves the bar to percent. Values never move it backwards.
func (b *UploadBar) Set(percent int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done || percent <= b.last {
		return
	}
	b.last = percent
	if b.bar != nil {
		b.bar.SetCurrent(int64(percent))
	}
}

// Complete fills the bar and prints a summary line for rec.
func (b *UploadBar) Complete(rec models.FileRecord) {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return
	}
	b.done = true
	b.mu.Unlock()

	if b.bar != nil {
		b.bar.SetCurrent(int64(constants.ProgressComplete))
		b.bar.SetTotal(int64(constants.ProgressComplete), true)
	}
	b.ui.println(fmt.Sprintf("✓ %s (FileID: %s, %s, %s)",
		truncatePath(b.name, 2), rec.ID, rec.Size.Human(),
		time.Since(b.started).Round(time.Millisecond)))
}

// Fail leaves the bar where it stopped and prints the cause.
func (b *UploadBar) Fail(err error) {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return
	}
	b.done = true
	b.mu.Unlock()

	if b.bar != nil {
		b.bar.Abort(false)
	}
	b.ui.println(fmt.Sprintf("✗ %s: %s", truncatePath(b.name, 2), models.Summary(err)))
}

// println writes through mpb when bars are live so the line lands above them.
func (u *UploadUI) println(msg string) {
	if u.isTerminal {
		fmt.Fprintln(u.progress, msg)
		return
	}
	fmt.Fprintln(u.out, msg)
}

// Wait blocks until every bar has completed or aborted.
func (u *UploadUI) Wait() {
	u.progress.Wait()
}

// Writer returns a writer that prints above the bars.
func (u *UploadUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return u.out
}

// IsTerminal reports whether bars are drawn.
func (u *UploadUI) IsTerminal() bool {
	return u.isTerminal
}

// truncatePath keeps the last maxComponents elements of a path.
// Example: truncatePath("/a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	return "…/" + strings.Join(parts[len(parts)-maxComponents:], "/")
}

package progress

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// Reporter shows an operation that has no measurable progress, such as a
// content retrieval or a list refresh.
type Reporter interface {
	Start(description string)
	Finish()
	Error(err error)
}

// CLIProgress implements Reporter with a progressbar spinner.
type CLIProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a spinner writing to out.
func NewCLIProgress(out io.Writer) *CLIProgress {
	return &CLIProgress{out: out}
}

// Start begins spinning with description.
func (p *CLIProgress) Start(description string) {
	p.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Finish clears the spinner.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

// Error clears the spinner and prints err.
func (p *CLIProgress) Error(err error) {
	if p.bar != nil {
		_ = p.bar.Exit()
		p.bar = nil
	}
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// NoOpProgress is a Reporter that does nothing (non-terminal output).
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

func (p *NoOpProgress) Start(description string) {}
func (p *NoOpProgress) Finish()                  {}
func (p *NoOpProgress) Error(err error)          {}

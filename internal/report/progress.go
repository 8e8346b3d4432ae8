package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/loykin/pushprobe/internal/step"
	"github.com/schollz/progressbar/v3"
)

// Progress draws a bar that advances once per recorded outcome. Observe is
// meant to be registered as a runner observer.
type Progress struct {
	bar     *progressbar.ProgressBar
	palette palette

	mu             sync.Mutex
	passed, failed int
	current        string
}

// NewProgress draws an empty bar of total steps on w.
func NewProgress(w io.Writer, total int, noColor bool) *Progress {
	p := &Progress{palette: newPalette(noColor)}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(p.describe()),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        p.palette.head("█"),
			SaucerHead:    p.palette.head("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(!noColor),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return p
}

func (p *Progress) describe() string {
	return p.palette.head("Running: ") +
		p.palette.pass(fmt.Sprintf("[passed: %d", p.passed)) +
		" | " +
		p.palette.fail(fmt.Sprintf("failed: %d]", p.failed)) +
		p.palette.dim(" "+p.current)
}

// Observe advances the bar for o.
func (p *Progress) Observe(o step.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if o.Passed {
		p.passed++
	} else {
		p.failed++
	}
	p.current = o.Name
	p.bar.Describe(p.describe())
	_ = p.bar.Add(1)
}

// Finish completes the bar even when fewer outcomes than expected arrived.
func (p *Progress) Finish() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bar.Finish()
}

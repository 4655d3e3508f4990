package utils

import (
	"os"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// Progress is a progress bar for long CLI operations. It renders only when
// stderr is a terminal and the user has not disabled it; otherwise every
// method is a no-op, so callers never branch.
type Progress struct {
	container *mpb.Progress
	bar       *mpb.Bar

	mu    sync.Mutex
	label string
}

// labelWidth is the column reserved for the current item. Long labels keep
// their tail: resource IDs and file paths differ at the end.
const labelWidth = 28

// NewProgress creates a progress bar over total steps.
func NewProgress(total int, enabled bool) *Progress {
	if !enabled || !term.IsTerminal(int(os.Stderr.Fd())) {
		return &Progress{}
	}

	p := &Progress{}
	p.container = mpb.New(
		mpb.WithOutput(os.Stderr),
		mpb.WithWidth(40),
	)
	p.bar = p.container.New(int64(total),
		mpb.BarStyle().Lbound("|").Filler("=").Tip(">").Padding(" ").Rbound("|"),
		mpb.PrependDecorators(
			decor.CountersNoUnit("%d/%d", decor.WC{W: 9}),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.Name(" "),
			decor.Any(func(decor.Statistics) string { return p.currentLabel() }),
		),
	)
	return p
}

func (p *Progress) currentLabel() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.label) > labelWidth {
		return "..." + p.label[len(p.label)-labelWidth+3:]
	}
	return p.label
}

// Update advances the bar and shows what is being worked on.
func (p *Progress) Update(current int, label string) {
	if p.bar == nil {
		return
	}
	p.mu.Lock()
	p.label = label
	p.mu.Unlock()
	p.bar.SetCurrent(int64(current))
}

// Finish renders the final state and tears the bar down.
func (p *Progress) Finish() {
	if p.container == nil {
		return
	}
	p.container.Wait()
}

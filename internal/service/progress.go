package service

import (
	"fmt"
	"io"
)

// Progress receives download progress updates. The lifecycle is owned by the
// caller of the download operation; Finish is called exactly once when the
// transfer ends, successfully or not.
type Progress interface {
	Update(read, total int64)
	Finish()
}

// NopProgress discards all updates.
type NopProgress struct{}

func (NopProgress) Update(read, total int64) {}
func (NopProgress) Finish()                  {}

// ConsoleProgress renders a single in-place progress line.
type ConsoleProgress struct {
	Label string
	W     io.Writer

	started bool
}

func NewConsoleProgress(w io.Writer, label string) *ConsoleProgress {
	return &ConsoleProgress{Label: label, W: w}
}

func (cp *ConsoleProgress) Update(read, total int64) {
	cp.started = true
	if total > 0 {
		fmt.Fprintf(cp.W, "\r%s: %3d%% (%d/%d bytes)", cp.Label, read*100/total, read, total)
		return
	}
	fmt.Fprintf(cp.W, "\r%s: %d bytes", cp.Label, read)
}

func (cp *ConsoleProgress) Finish() {
	if cp.started {
		fmt.Fprintln(cp.W)
	}
}

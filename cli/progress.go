// Package cli holds the small terminal-facing helpers: batch progress
// rendering and signal-aware contexts.
package cli

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ProgressReporter reports progress for long-running batches.
type ProgressReporter interface {
	Start(total int64)
	Update(current int64)
	Finish()
}

// BarProgress renders a single-line text progress bar. It is meant for
// interactive runs; scheduled runs use a no-op reporter instead.
type BarProgress struct {
	total   int64
	current int64
	started time.Time
	writer  io.Writer
}

func NewBarProgress(w io.Writer) *BarProgress {
	return &BarProgress{writer: w}
}

func (p *BarProgress) Start(total int64) {
	p.total = total
	p.current = 0
	p.started = time.Now()
	p.render()
}

func (p *BarProgress) Update(current int64) {
	p.current = current
	p.render()
}

func (p *BarProgress) Finish() {
	p.current = p.total
	p.render()
	fmt.Fprintln(p.writer)
}

func (p *BarProgress) render() {
	if p.total == 0 {
		return
	}

	percent := float64(p.current) / float64(p.total) * 100
	barWidth := 30
	filled := int(float64(barWidth) * percent / 100)

	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)

	elapsed := time.Since(p.started).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.current) / elapsed
	}

	fmt.Fprintf(p.writer, "\r[%s] %.0f%% (%d/%d) %.1f items/s",
		bar, percent, p.current, p.total, rate)
}

// NopProgress discards all progress updates.
type NopProgress struct{}

func (NopProgress) Start(int64)  {}
func (NopProgress) Update(int64) {}
func (NopProgress) Finish()      {}

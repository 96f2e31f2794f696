package catalog

import (
	"fmt"
	"log"
)

// DefaultLogPercentChange is how far the completion percentage must advance
// before another progress line is emitted.
const DefaultLogPercentChange = 0.01

// Progress rate-limits completion logging: a line is emitted only when the
// percentage has advanced past the configured delta since the last emission,
// which bounds log volume independent of row count.
type Progress struct {
	name    string
	delta   float64
	lastPct float64
	emit    func(msg string)
}

// NewProgress creates a progress tracker for the named input.
func NewProgress(name string, delta float64) *Progress {
	if delta <= 0 {
		delta = DefaultLogPercentChange
	}
	return &Progress{
		name:  name,
		delta: delta,
		emit:  func(msg string) { log.Print(msg) },
	}
}

// Observe records the current reader position and emits a progress line when
// the percentage has advanced far enough.
func (p *Progress) Observe(readBytes, totalBytes int64, rows int) {
	if totalBytes <= 0 {
		return
	}
	pct := float64(readBytes) / float64(totalBytes) * 100.0
	if pct-p.lastPct > p.delta {
		p.lastPct = pct
		p.emit(fmt.Sprintf("%s: %.2f%% complete (%d bytes of %d; %d rows)",
			p.name, pct, readBytes, totalBytes, rows))
	}
}

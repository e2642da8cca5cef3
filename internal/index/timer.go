package index

import (
	"time"

	"github.com/charmbracelet/log"
)

// Timer measures elapsed time around the bulk index build and logs it on
// Stop, the Go/defer equivalent of original_source's ScopeTime (a
// Drop-based RAII timer that printed "<ms> ms" when the scope exited).
type Timer struct {
	start time.Time
	label string
}

// StartTimer begins a scoped timing measurement tagged with label.
func StartTimer(label string) *Timer {
	return &Timer{start: time.Now(), label: label}
}

// Stop logs the elapsed time since StartTimer at Info level. Intended to
// be called via defer so it fires on every exit path, including errors.
func (t *Timer) Stop() {
	log.Info(t.label, "elapsed_ms", time.Since(t.start).Milliseconds())
}

// Package suggest implements the debounced suggestion pipeline: input
// coalescing, the confidence-gated cache, and the two delivery paths the
// editor widget consumes.
package suggest

import (
	"sync"
	"time"
)

// FireFunc runs when a quiescence window elapses. The token is unique and
// monotonically increasing per firing; document and cursor are the state
// captured at firing time.
type FireFunc func(token uint64, document string, cursor int)

// Debouncer coalesces a rapid input stream into at most one firing per
// quiescence window. A new Notify before the window elapses discards the
// pending firing entirely, snapshot included.
type Debouncer struct {
	window time.Duration
	fire   FireFunc

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	issued  uint64
	stopped bool
}

// NewDebouncer creates a debouncer with the given quiescence window.
func NewDebouncer(window time.Duration, fire FireFunc) *Debouncer {
	return &Debouncer{window: window, fire: fire}
}

// Notify records a local edit. Any previously scheduled firing is cancelled;
// a new one is scheduled a full window from now with this call's snapshot.
func (d *Debouncer) Notify(document string, cursor int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.seq++
	token := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() {
		d.fireIfCurrent(token, document, cursor)
	})
}

func (d *Debouncer) fireIfCurrent(token uint64, document string, cursor int) {
	d.mu.Lock()
	if d.stopped || token != d.seq {
		// A newer notify superseded this firing.
		d.mu.Unlock()
		return
	}
	d.issued = token
	d.mu.Unlock()

	d.fire(token, document, cursor)
}

// LastIssued returns the token of the most recent firing, zero if none.
func (d *Debouncer) LastIssued() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.issued
}

// Stop cancels any pending firing. The debouncer is unusable afterwards.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

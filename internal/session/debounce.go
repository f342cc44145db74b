package session

import (
	"sync"
	"time"
)

// DefaultDelay is the debounce delay used when none is configured.
const DefaultDelay = 500 * time.Millisecond

// Debouncer coalesces bursts of Schedule calls per key into one call of
// fire, timed from the last Schedule. It keeps at most one live timer per
// key; a timer that already started firing when it was replaced is
// suppressed by a generation check.
type Debouncer struct {
	mu     sync.Mutex
	timers map[string]pendingTimer
	seq    uint64
	fire   func(key string)
	closed bool
}

type pendingTimer struct {
	timer *time.Timer
	gen   uint64
}

// NewDebouncer returns a Debouncer that calls fire on its own goroutine.
func NewDebouncer(fire func(key string)) *Debouncer {
	return &Debouncer{
		timers: make(map[string]pendingTimer),
		fire:   fire,
	}
}

// Schedule arms (or re-arms) the timer for key. Zero or negative delays fire
// as soon as possible. It reports false after Dispose.
func (d *Debouncer) Schedule(key string, delay time.Duration) bool {
	if delay < 0 {
		delay = 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	if prev, ok := d.timers[key]; ok {
		prev.timer.Stop()
	}
	d.seq++
	gen := d.seq
	d.timers[key] = pendingTimer{
		timer: time.AfterFunc(delay, func() { d.fireIfCurrent(key, gen) }),
		gen:   gen,
	}
	return true
}

// Cancel removes the pending timer for key without firing it. It reports
// whether a timer was pending.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev, ok := d.timers[key]
	if !ok {
		return false
	}
	prev.timer.Stop()
	delete(d.timers, key)
	return true
}

// Pending reports whether a timer is armed for key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.timers[key]
	return ok
}

// Dispose cancels every pending timer and rejects further schedules.
func (d *Debouncer) Dispose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for key, p := range d.timers {
		p.timer.Stop()
		delete(d.timers, key)
	}
}

func (d *Debouncer) fireIfCurrent(key string, gen uint64) {
	d.mu.Lock()
	p, ok := d.timers[key]
	if !ok || p.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.timers, key)
	d.mu.Unlock()
	d.fire(key)
}

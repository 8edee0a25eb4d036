package cart

import (
	"sync"
	"time"
)

// Debouncer coalesces calls per key: fn runs once, delay after the last
// Trigger for that key. Only the most recent fn is kept.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]func()
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		timers:  make(map[string]*time.Timer),
		pending: make(map[string]func()),
	}
}

func (d *Debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[key] = fn
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.timers[key] = time.AfterFunc(d.delay, func() { d.fire(key) })
}

func (d *Debouncer) fire(key string) {
	d.mu.Lock()
	fn, ok := d.pending[key]
	delete(d.pending, key)
	delete(d.timers, key)
	d.mu.Unlock()

	if ok {
		fn()
	}
}

// Cancel drops a pending call for key without running it.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	delete(d.timers, key)
	delete(d.pending, key)
}

// Flush runs every pending call now, synchronously.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	fns := make([]func(), 0, len(d.pending))
	for key, fn := range d.pending {
		if t, ok := d.timers[key]; ok {
			t.Stop()
		}
		fns = append(fns, fn)
	}
	d.timers = make(map[string]*time.Timer)
	d.pending = make(map[string]func())
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Pending reports how many keys are waiting to fire.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

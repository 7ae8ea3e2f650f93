package microbit

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Watchdog calls onStale once when it isn't reset for longer than timeout.
type Watchdog struct {
	mu      sync.Mutex
	clock   clock.Clock
	timeout time.Duration
	onStale func()
	gen     uint64
	timer   *clock.Timer
}

func NewWatchdog(clk clock.Clock, timeout time.Duration, onStale func()) *Watchdog {
	if clk == nil {
		clk = clock.New()
	}
	if timeout <= 0 {
		timeout = StaleTimeout
	}
	return &Watchdog{clock: clk, timeout: timeout, onStale: onStale}
}

// Arm starts the watchdog, restarting it if already running.
func (w *Watchdog) Arm() {
	w.Reset()
}

// Reset cancels the pending expiry and starts a new one.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
	gen := w.gen
	w.timer = w.clock.AfterFunc(w.timeout, func() { w.fire(gen) })
}

// Stop cancels the pending expiry, if any.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

// Armed reports whether an expiry is pending.
func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timer != nil
}

func (w *Watchdog) stopLocked() {
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Watchdog) fire(gen uint64) {
	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return
	}
	w.gen++
	w.timer = nil
	onStale := w.onStale
	w.mu.Unlock()

	if onStale != nil {
		onStale()
	}
}

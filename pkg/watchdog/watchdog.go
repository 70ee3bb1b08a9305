// Package watchdog implements the FSoE connection watchdog: a plain
// arithmetic timeout driven by a monotonic tick value the host passes into
// every cycle, with no internal goroutines or timers. The core's
// concurrency model rules out background timers, so unlike the teacher's
// heartbeat-producer goroutine this is recomputed synchronously on demand.
package watchdog

import "math"

// Watchdog tracks elapsed time since it was last (re)started, expressed in
// host-supplied monotonic milliseconds.
type Watchdog struct {
	startTick uint64
	timeoutMs uint32
	running   bool
}

// Start begins the watchdog at startTick with the given timeout.
func (w *Watchdog) Start(startTick uint64, timeoutMs uint32) {
	w.startTick = startTick
	w.timeoutMs = timeoutMs
	w.running = true
}

// Kick restarts the watchdog at nowTick without changing its timeout. It is
// a no-op if the watchdog is not running.
func (w *Watchdog) Kick(nowTick uint64) {
	if !w.running {
		return
	}
	w.startTick = nowTick
}

// Stop disables the watchdog; IsExpired always reports false while stopped.
func (w *Watchdog) Stop() {
	w.running = false
}

// IsExpired reports whether nowTick - startTick >= timeoutMs. A stopped
// watchdog never expires.
func (w *Watchdog) IsExpired(nowTick uint64) bool {
	if !w.running {
		return false
	}
	return nowTick-w.startTick >= uint64(w.timeoutMs)
}

// RemainingMs returns the milliseconds left before expiry, or
// math.MaxUint32 if the watchdog is stopped.
func (w *Watchdog) RemainingMs(nowTick uint64) uint32 {
	if !w.running {
		return math.MaxUint32
	}
	elapsed := nowTick - w.startTick
	if elapsed >= uint64(w.timeoutMs) {
		return 0
	}
	return w.timeoutMs - uint32(elapsed)
}

// Package clock abstracts wall-clock time so timed exam sessions can be driven
// deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Ticker delivers ticks on C until Stop is called.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers and reports the current time.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// ────────────────────────────────────────────────────────────────────────────
// Manual clock
// ────────────────────────────────────────────────────────────────────────────

// Manual is a Clock whose tickers only fire when Fire is called.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*ManualTicker
}

// NewManual creates a Manual clock starting at now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

// Now returns the manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the manual time forward without firing tickers.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// NewTicker registers a ticker that fires on Fire.
func (m *Manual) NewTicker(time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &ManualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	m.tickers = append(m.tickers, t)
	return t
}

// Fire delivers one tick to every running ticker and returns how many
// received it. Each send blocks until the ticker's reader takes it.
func (m *Manual) Fire() int {
	m.mu.Lock()
	now := m.now
	running := make([]*ManualTicker, 0, len(m.tickers))
	for _, t := range m.tickers {
		if !t.Stopped() {
			running = append(running, t)
		}
	}
	m.mu.Unlock()

	delivered := 0
	for _, t := range running {
		select {
		case t.ch <- now:
			delivered++
		case <-t.stopped:
		}
	}
	return delivered
}

// Running returns the number of tickers not yet stopped.
func (m *Manual) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickers {
		if !t.Stopped() {
			n++
		}
	}
	return n
}

// ManualTicker is the Ticker handed out by Manual.
type ManualTicker struct {
	ch       chan time.Time
	stopped  chan struct{}
	stopOnce sync.Once
}

func (t *ManualTicker) C() <-chan time.Time { return t.ch }

func (t *ManualTicker) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}

// Stopped reports whether Stop has been called.
func (t *ManualTicker) Stopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}

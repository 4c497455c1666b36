package clock

import (
	"sync"
	"time"
)

// Fake is a manually driven Clock for tests.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*FakeTicker
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward without firing tickers.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &FakeTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	f.tickers = append(f.tickers, t)
	return t
}

// Tickers returns every ticker created so far, oldest first.
func (f *Fake) Tickers() []*FakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeTicker, len(f.tickers))
	copy(out, f.tickers)
	return out
}

// LastTicker returns the most recently created ticker or nil.
func (f *Fake) LastTicker() *FakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tickers) == 0 {
		return nil
	}
	return f.tickers[len(f.tickers)-1]
}

type FakeTicker struct {
	ch       chan time.Time
	stopOnce sync.Once
	stopped  chan struct{}
}

func (t *FakeTicker) C() <-chan time.Time { return t.ch }

func (t *FakeTicker) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}

// Tick delivers one tick and blocks until a receiver takes it. It returns
// false if the ticker was stopped or nobody received within a second.
func (t *FakeTicker) Tick() bool {
	select {
	case t.ch <- time.Time{}:
		return true
	case <-t.stopped:
		return false
	case <-time.After(time.Second):
		return false
	}
}

// Stopped reports whether Stop has been called.
func (t *FakeTicker) Stopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}

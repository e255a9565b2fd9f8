package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a deterministic Clock. Time moves only through Advance
// or Set; tickers whose deadlines are crossed fire in deadline order.
// Safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	tickers []*fakeTicker
	changed *sync.Cond
}

type fakeTicker struct {
	deadline time.Time
	interval time.Duration
	channel  chan time.Time
	stopped  bool
}

// Fake returns a FakeClock starting at initial.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{current: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NewTicker registers a ticker firing every d of fake time. Panics if
// d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTicker{
		deadline: c.current.Add(d),
		interval: d,
		channel:  make(chan time.Time, 1),
	}
	c.tickers = append(c.tickers, t)
	c.changed.Broadcast()

	return &Ticker{
		C: t.channel,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			t.stopped = true
		},
	}
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()
	c.Set(target)
}

// Set moves the clock to t and fires every ticker deadline crossed on
// the way. Moving backwards only changes Now.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = t

	type firing struct {
		at     time.Time
		ticker *fakeTicker
	}
	var due []firing
	for _, ticker := range c.tickers {
		if ticker.stopped {
			continue
		}
		for !ticker.deadline.After(t) {
			due = append(due, firing{at: ticker.deadline, ticker: ticker})
			ticker.deadline = ticker.deadline.Add(ticker.interval)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })

	for _, f := range due {
		select {
		case f.ticker.channel <- f.at:
		default:
		}
	}
}

// WaitForTickers blocks until at least n live tickers are registered.
// Tests call it before Advance so a loop goroutine cannot miss a tick.
func (c *FakeClock) WaitForTickers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.liveLocked() < n {
		c.changed.Wait()
	}
}

func (c *FakeClock) liveLocked() int {
	count := 0
	for _, t := range c.tickers {
		if !t.stopped {
			count++
		}
	}
	return count
}

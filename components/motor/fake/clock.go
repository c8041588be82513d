package fake

import (
	"sync"
	"time"
)

// DefaultQuantum is how far a SimClock moves on every call to Now.
const DefaultQuantum = time.Microsecond

// SimClock is a simulated clock. Sleep returns at once after moving the clock forward, and
// every call to Now moves it forward by a small quantum so that busy loops make progress.
type SimClock struct {
	mu      sync.Mutex
	now     time.Time
	quantum time.Duration
}

// NewSimClock returns a SimClock starting at the Unix epoch.
func NewSimClock() *SimClock {
	return &SimClock{now: time.Unix(0, 0).UTC(), quantum: DefaultQuantum}
}

// Now moves the clock forward by one quantum and returns the new time.
func (c *SimClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.quantum)
	return c.now
}

// Sleep moves the clock forward by d.
func (c *SimClock) Sleep(d time.Duration) {
	c.Add(d)
}

// After moves the clock forward by d and returns a channel already holding the new time.
func (c *SimClock) After(d time.Duration) <-chan time.Time {
	c.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.Peek()
	return ch
}

// Add moves the clock forward by d.
func (c *SimClock) Add(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Peek returns the current time without moving the clock.
func (c *SimClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

package testutil

import "sync"

// DeterministicClock is a logical clock that a scenario can rewind.
// It satisfies engine.Sequencer and store.Sequencer, so the bus and the
// recorder share one seq space and a replay after Reset reproduces the
// same seqs.
type DeterministicClock struct {
	mu    sync.Mutex
	start int64
	seq   int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockFrom(0)
}

// NewDeterministicClockFrom returns a clock whose first Next is start+1,
// as if a previous session had already used seqs up to start.
func NewDeterministicClockFrom(start int64) *DeterministicClock {
	return &DeterministicClock{start: start, seq: start}
}

func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	c.seq++
	v := c.seq
	c.mu.Unlock()
	return v
}

// Current is the last seq handed out.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock to where it was constructed.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	c.seq = c.start
	c.mu.Unlock()
}

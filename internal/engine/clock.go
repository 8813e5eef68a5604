package engine

import "sync/atomic"

// Clock stamps raw events and recorded firings with a logical seq.
// Wall time never orders anything in the engine.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock whose first Next is start+1. A run that
// appends to an existing firing log starts from store.MaxSeq.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next is safe for concurrent use; no two calls return the same seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current is the last seq handed out, or the start if none was.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Sequencer is the part of Clock the bus and the recorder depend on.
// testutil.DeterministicClock implements it for reproducible scenarios.
type Sequencer interface {
	Next() int64
}

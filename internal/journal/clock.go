package journal

import "sync/atomic"

// Sequencer hands out strictly increasing entry sequence numbers.
type Sequencer interface {
	Next() int64
}

// Clock is the journal's logical clock. Every appended entry is stamped
// with the next value, so seq order is append order regardless of wall
// time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClockAt creates a clock whose next value is start+1. Open resumes
// from the highest seq already stored.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

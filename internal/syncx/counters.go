// Package syncx holds the small lock-free primitives shared by concurrent
// save jobs.
package syncx

import "sync/atomic"

// Counters tracks the outcome of a batch. Total is fixed at construction;
// success and failure are bumped concurrently by workers.
type Counters struct {
	success atomic.Int64
	fail    atomic.Int64
	total   int64
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	Success int
	Fail    int
	Total   int
}

// NewCounters returns Counters for a batch of total jobs.
func NewCounters(total int) *Counters {
	return &Counters{total: int64(total)}
}

// Succeed records a success and returns the new success count.
func (c *Counters) Succeed() int {
	return int(c.success.Add(1))
}

// Fail records a failure and returns the new failure count.
func (c *Counters) Fail() int {
	return int(c.fail.Add(1))
}

// Success returns the current success count.
func (c *Counters) Success() int {
	return int(c.success.Load())
}

// Failed returns the current failure count.
func (c *Counters) Failed() int {
	return int(c.fail.Load())
}

// Total returns the batch size.
func (c *Counters) Total() int {
	return int(c.total)
}

// Snapshot reads all three values. Success and Fail are loaded separately,
// so a snapshot taken mid-batch may straddle a concurrent update.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Success: c.Success(),
		Fail:    c.Failed(),
		Total:   c.Total(),
	}
}

// Done reports whether every job has concluded.
func (s Snapshot) Done() bool {
	return s.Success+s.Fail == s.Total
}

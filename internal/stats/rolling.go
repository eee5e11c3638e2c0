// Package stats implements the ambient, §6 enable_metrics-gated periodic
// counters the HTTP/ingest surfaces report through. Grounded on the
// teacher's statistics/periodic_statistic.go rolling-grid averager
// (statistics/bitrate.go, statistics/fps.go build on the same primitive),
// adapted to be safe for the "one writer (ingest adapter), many readers
// (periodic reporter + diagnostics endpoint)" access pattern spec §5
// describes for shared resources, since the teacher's own version notes
// itself as single-writer-only.
package stats

import (
	"sync"
	"time"
)

// DefaultGridCount is the rolling window's bucket count, matching the
// teacher's DefaultStatGridNum.
const DefaultGridCount = int64(5)

// RollingCounter tracks the sum/avg/max/min of values added over a sliding
// window of gridCount buckets, each gridPeriod seconds wide.
type RollingCounter struct {
	mu sync.Mutex

	gridCount  int64
	gridPeriod int64
	grid       []int64

	sum, avg, max, min int64
	lastIdx            int64
	lastStatTime        int64
}

// NewRollingCounter returns a counter spanning gridCount buckets of
// gridPeriod seconds each.
func NewRollingCounter(gridCount, gridPeriod int64) *RollingCounter {
	return &RollingCounter{
		gridCount:  gridCount + 1,
		gridPeriod: gridPeriod,
		grid:       make([]int64, gridCount+1),
	}
}

func (c *RollingCounter) expiredLocked(now int64) bool {
	return now > c.lastStatTime+c.gridCount*c.gridPeriod
}

// Add records one sample (e.g. bytes written, frames emitted) at the
// current time.
func (c *RollingCounter) Add(val int64) {
	now := time.Now().Unix()
	idx := now % (c.gridCount * c.gridPeriod) / c.gridPeriod

	c.mu.Lock()
	defer c.mu.Unlock()

	if now >= c.lastStatTime+c.gridCount*c.gridPeriod {
		for i := range c.grid {
			c.grid[i] = 0
		}
		c.grid[idx] = val
		c.sum, c.max, c.min = val, val, val
		c.lastIdx = idx
		c.avg = c.calcAvgLocked()
		c.lastStatTime = now
		return
	}

	if idx == c.lastIdx && now-c.lastStatTime <= c.gridPeriod {
		c.grid[idx] += val
		c.sum += val
		c.avg = c.calcAvgLocked()
		c.updateMinMaxLocked(val)
		c.lastStatTime = now
		return
	}

	virtualPos := idx
	if virtualPos <= c.lastIdx {
		virtualPos += c.gridCount
	}
	for i := c.lastIdx + 1; i <= virtualPos; i++ {
		actual := i % c.gridCount
		c.sum -= c.grid[actual]
		c.grid[actual] = 0
	}
	c.grid[idx] += val
	c.sum += val
	c.updateMinMaxLocked(val)
	c.lastIdx = idx
	c.avg = c.calcAvgLocked()
	c.lastStatTime = now
}

func (c *RollingCounter) updateMinMaxLocked(val int64) {
	if val > c.max {
		c.max = val
	}
	if val < c.min {
		c.min = val
	}
}

// calcAvgLocked excludes the currently-filling bucket so a burst near the
// window edge doesn't skew the average, mirroring the teacher's calcAvg.
func (c *RollingCounter) calcAvgLocked() int64 {
	if c.gridCount <= 1 {
		return c.sum
	}
	return (c.sum - c.grid[c.lastIdx]) / (c.gridCount - 1)
}

// Avg returns the rolling average, or 0 if no sample has landed within the
// window.
func (c *RollingCounter) Avg() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expiredLocked(time.Now().Unix()) {
		return 0
	}
	return c.avg
}

// Sum returns the rolling sum, or 0 if expired.
func (c *RollingCounter) Sum() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expiredLocked(time.Now().Unix()) {
		return 0
	}
	return c.sum
}

// Package timeseries provides time-windowed rate tracking for the control bus.
//
// It counts control datagrams and computes rolling send rates over short
// windows, which is what the console surface shows during slider bursts.
//
// Thread-safe: Add() uses atomic int64, Stats() acquires the sample lock.
package timeseries

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ringBufferSize is the number of samples to retain (1 minute at ~4
	// samples/sec, the console tick rate)
	ringBufferSize = 256

	// Window durations for rolling rates
	window1s  = 1 * time.Second
	window10s = 10 * time.Second
	window60s = 60 * time.Second
)

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

// realClock uses time.Now() for production.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// sample represents a point-in-time snapshot of the cumulative count.
type sample struct {
	timestamp time.Time
	count     int64
}

// RateTracker counts events and computes rolling per-second rates over
// configurable time windows.
//
// Usage:
//
//	tracker := NewRateTracker()
//	tracker.Add(1)          // Called per datagram (thread-safe, lock-free)
//	// ... periodic sampling (e.g., every display tick)
//	tracker.RecordSample()
//	stats := tracker.Stats()
type RateTracker struct {
	// total is the cumulative event count (atomic for lock-free Add)
	total atomic.Int64

	// Ring buffer of samples for rolling rate calculation
	samples  []sample
	writeIdx int
	mu       sync.RWMutex

	// Start time for the overall rate
	startTime time.Time

	// Clock for testability
	clock Clock
}

// RateStats contains computed rolling rates at a point in time.
type RateStats struct {
	// Total is the cumulative event count since start
	Total int64

	// Rolling rates (events per second)
	Rate1s  float64
	Rate10s float64
	Rate60s float64

	// RateOverall is the average rate since tracking started
	RateOverall float64
}

// NewRateTracker creates a new tracker with real clock.
func NewRateTracker() *RateTracker {
	return NewRateTrackerWithClock(realClock{})
}

// NewRateTrackerWithClock creates a tracker with custom clock for testing.
func NewRateTrackerWithClock(clock Clock) *RateTracker {
	now := clock.Now()
	t := &RateTracker{
		samples:   make([]sample, 0, ringBufferSize),
		startTime: now,
		clock:     clock,
	}
	// Record initial sample at t=0 with 0 events
	t.samples = append(t.samples, sample{timestamp: now, count: 0})
	return t
}

// Add adds events to the cumulative total.
// Thread-safe and lock-free (uses atomic int64).
func (t *RateTracker) Add(n int64) {
	if n > 0 {
		t.total.Add(n)
	}
}

// RecordSample records the current cumulative count with a timestamp.
// Call this periodically, e.g. on every display tick.
func (t *RateTracker) RecordSample() {
	now := t.clock.Now()
	current := t.total.Load()

	t.mu.Lock()
	defer t.mu.Unlock()

	newSample := sample{timestamp: now, count: current}

	if len(t.samples) < ringBufferSize {
		t.samples = append(t.samples, newSample)
	} else {
		t.samples[t.writeIdx] = newSample
		t.writeIdx = (t.writeIdx + 1) % ringBufferSize
	}
}

// Stats computes and returns current rate statistics. Always returns valid
// data, using whatever history is available.
func (t *RateTracker) Stats() RateStats {
	now := t.clock.Now()
	current := t.total.Load()

	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := RateStats{
		Total: current,
	}

	elapsed := now.Sub(t.startTime).Seconds()
	if elapsed > 0 {
		stats.RateOverall = float64(current) / elapsed
	}

	stats.Rate1s = t.rateOverWindow(now, current, window1s)
	stats.Rate10s = t.rateOverWindow(now, current, window10s)
	stats.Rate60s = t.rateOverWindow(now, current, window60s)

	return stats
}

// rateOverWindow calculates events/sec over the specified window.
// Must be called with mu held (at least RLock).
func (t *RateTracker) rateOverWindow(now time.Time, current int64, window time.Duration) float64 {
	if len(t.samples) == 0 {
		return 0
	}

	targetTime := now.Add(-window)

	// Find the baseline sample closest to targetTime. It must be strictly
	// before the boundary: a sample taken exactly at the boundary already
	// contains events from inside the window and would hide them.
	var bestSample *sample
	var bestDiff time.Duration = -1

	for i := range t.samples {
		s := &t.samples[i]
		if !s.timestamp.Before(targetTime) {
			continue // Sample is within the window, skip
		}
		diff := targetTime.Sub(s.timestamp)
		if bestDiff < 0 || diff < bestDiff {
			bestSample = s
			bestDiff = diff
		}
	}

	// If no sample before targetTime, use the oldest sample we have
	if bestSample == nil {
		bestSample = t.oldestSample()
	}

	if bestSample == nil {
		return 0
	}

	transferred := current - bestSample.count
	actualElapsed := now.Sub(bestSample.timestamp).Seconds()

	if actualElapsed <= 0 {
		return 0
	}

	return float64(transferred) / actualElapsed
}

// oldestSample returns the oldest sample in the ring buffer.
// Must be called with mu held.
func (t *RateTracker) oldestSample() *sample {
	if len(t.samples) == 0 {
		return nil
	}

	if len(t.samples) < ringBufferSize {
		return &t.samples[0]
	}

	// Buffer full - oldest is at writeIdx (next to be overwritten)
	return &t.samples[t.writeIdx]
}

// Reset clears all data and restarts tracking.
func (t *RateTracker) Reset() {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.total.Store(0)
	t.samples = t.samples[:0]
	t.samples = append(t.samples, sample{timestamp: now, count: 0})
	t.writeIdx = 0
	t.startTime = now
}

// SampleCount returns the number of samples in the ring buffer.
// Useful for testing.
func (t *RateTracker) SampleCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.samples)
}

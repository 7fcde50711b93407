// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ratelimit implements a sliding-window rate limiter keyed by
// caller identity.
//
// The limiter tracks the timestamps of admitted requests per key. A
// request is admitted when, after pruning entries older than the window,
// fewer than Limit timestamps remain. Prune, check, and append happen
// under one lock acquisition, so concurrent callers racing on the same
// key can never admit more than Limit requests per window.
//
// A token-bucket limiter (golang.org/x/time/rate) smooths bursts but
// cannot express the exact "at most L requests in any trailing W"
// guarantee this gateway promises, so the window is tracked explicitly.
package ratelimit

import (
	"sync"
	"time"
)

// =============================================================================
// Limiter
// =============================================================================

// Limiter is a per-key sliding-window admission gate.
//
// # Thread Safety
//
// Safe for concurrent use. A single mutex guards the whole key map; with
// the gateway's request volumes contention on it is negligible, and it
// keeps the prune-check-append sequence atomic without per-key locks.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string][]time.Time
	now     func() time.Time
}

// NewLimiter creates a limiter admitting at most limit requests per key
// in any trailing window. Non-positive limit or window fall back to the
// gateway defaults (60 requests per 60s).
func NewLimiter(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	return &Limiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// WithClock replaces the limiter clock. Test hook; not for production use.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Admit records a request for key at the current time and reports whether
// it is within the limit. A rejected request is not recorded — it does
// not extend the caller's penalty.
func (l *Limiter) Admit(key string) bool {
	return l.admitAt(key, l.now())
}

// admitAt is the clock-explicit core of Admit.
func (l *Limiter) admitAt(key string, now time.Time) bool {
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket := l.buckets[key]

	// Drop timestamps that have aged out of the window. Entries are
	// appended in lock order, so the slice is sorted and a single scan
	// from the front suffices.
	keep := 0
	for keep < len(bucket) && !bucket[keep].After(cutoff) {
		keep++
	}
	bucket = bucket[keep:]

	if len(bucket) >= l.limit {
		l.buckets[key] = bucket
		return false
	}

	l.buckets[key] = append(bucket, now)
	return true
}

// Prune discards keys whose every recorded request has aged out of the
// window. Called periodically so abandoned clients do not pin memory.
// Returns the number of keys removed.
func (l *Limiter) Prune() int {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, bucket := range l.buckets {
		if len(bucket) == 0 || !bucket[len(bucket)-1].After(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Keys reports how many keys currently hold recorded requests.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

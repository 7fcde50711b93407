// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"math"
	"sync/atomic"
	"time"
)

// RequestStats tracks coarse process-lifetime counters for the health
// endpoint. Kept separate from the Prometheus registry so /health can
// report them even when metrics export is disabled.
//
// # Thread Safety
//
// All counters are atomic; Record may be called from concurrent
// request handlers.
type RequestStats struct {
	started   time.Time
	total     atomic.Int64
	succeeded atomic.Int64
}

// NewRequestStats returns stats anchored at the current time.
func NewRequestStats() *RequestStats {
	return &RequestStats{started: time.Now()}
}

// Record counts one completed request. Anything the handler answered
// itself (including 4xx) counts as succeeded; 5xx does not.
func (s *RequestStats) Record(status int) {
	s.total.Add(1)
	if status < 500 {
		s.succeeded.Add(1)
	}
}

// Uptime reports how long the process has been serving.
func (s *RequestStats) Uptime() time.Duration {
	return time.Since(s.started)
}

// Totals returns the completed and succeeded request counts.
func (s *RequestStats) Totals() (total, succeeded int64) {
	return s.total.Load(), s.succeeded.Load()
}

// SuccessRate is the percentage of requests answered below 500,
// rounded to two decimals. 100 when nothing has been served yet.
func (s *RequestStats) SuccessRate() float64 {
	total, succeeded := s.Totals()
	if total == 0 {
		return 100
	}
	return math.Round(float64(succeeded)/float64(total)*10000) / 100
}

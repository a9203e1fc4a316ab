// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package credential

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RateLimiterConfig configures the per-origin sliding window.
type RateLimiterConfig struct {
	// Window is the trailing span attempts are counted over.
	Window time.Duration

	// MaxAttempts is the number of attempts permitted inside Window.
	MaxAttempts int
}

// DefaultRateLimiterConfig returns the reference limiter parameters:
// 10 attempts per 15 minutes.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Window:      15 * time.Minute,
		MaxAttempts: 10,
	}
}

var rateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
	Name: "palisade_ratelimit_rejections_total",
	Help: "Total number of authentication attempts rejected by the origin rate limiter",
})

// RateLimiter throttles authentication attempts per network-origin key
// within a trailing window. It is identity-blind: throttling depends only
// on the origin, never on whether the targeted account exists, so
// differential throttling cannot leak account existence.
type RateLimiter struct {
	cfg RateLimiterConfig
	now func() time.Time

	mu       sync.Mutex
	attempts map[string][]time.Time
}

// NewRateLimiter creates a RateLimiter. A nil clock uses time.Now.
func NewRateLimiter(cfg RateLimiterConfig, clock func() time.Time) *RateLimiter {
	if clock == nil {
		clock = time.Now
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultRateLimiterConfig().Window
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRateLimiterConfig().MaxAttempts
	}
	return &RateLimiter{
		cfg:      cfg,
		now:      clock,
		attempts: make(map[string][]time.Time),
	}
}

// Allow reports whether another attempt from the origin is permitted and,
// if so, records it. Check-and-record happens under one lock so two
// concurrent callers cannot both squeeze under the cap.
func (l *RateLimiter) Allow(originKey string) bool {
	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	// Prune entries older than the window lazily on each check.
	recent := l.attempts[originKey][:0]
	for _, t := range l.attempts[originKey] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.cfg.MaxAttempts {
		l.attempts[originKey] = recent
		rateLimitRejections.Inc()
		return false
	}

	l.attempts[originKey] = append(recent, now)
	return true
}

// Prune drops origins whose entire window has expired. Allow prunes the
// touched key on every call; Prune is for a periodic sweep so one-shot
// origins do not accumulate forever.
func (l *RateLimiter) Prune() {
	cutoff := l.now().Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, times := range l.attempts {
		live := false
		for _, t := range times {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.attempts, key)
		}
	}
}

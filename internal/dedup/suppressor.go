// Package dedup filters repeated detections of a held-steady barcode.
package dedup

import (
	"sync"
	"time"

	"github.com/vzahanych/barcode-scanner/internal/decode"
)

// DefaultCooldown is the suppression window used when none is configured
const DefaultCooldown = 2 * time.Second

// Suppressor forwards a value at most once per cool-down window
type Suppressor struct {
	mu        sync.Mutex
	cooldown  time.Duration
	now       func() time.Time
	lastValue string
	expiresAt time.Time
}

// Window is a copy of the suppressor state
type Window struct {
	LastValue string
	ExpiresAt time.Time
}

// Option configures a Suppressor
type Option func(*Suppressor)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Suppressor) { s.now = now }
}

// New creates a suppressor with the given cool-down; zero or negative means DefaultCooldown
func New(cooldown time.Duration, opts ...Option) *Suppressor {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	s := &Suppressor{cooldown: cooldown, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Accept reports whether the detection should be forwarded. A value differing
// from the last forwarded one is always accepted; a repeat is accepted only
// once the window has expired. Accepting opens a new window.
func (s *Suppressor) Accept(d decode.Detection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := d.ObservedAt
	if at.IsZero() {
		at = s.now()
	}

	if s.lastValue != "" && d.Value == s.lastValue && at.Before(s.expiresAt) {
		return false
	}

	s.lastValue = d.Value
	s.expiresAt = at.Add(s.cooldown)
	return true
}

// Reset clears the window
func (s *Suppressor) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastValue = ""
	s.expiresAt = time.Time{}
}

// Window returns the current suppression state
func (s *Suppressor) Window() Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Window{LastValue: s.lastValue, ExpiresAt: s.expiresAt}
}

// Cooldown returns the configured window length
func (s *Suppressor) Cooldown() time.Duration {
	return s.cooldown
}

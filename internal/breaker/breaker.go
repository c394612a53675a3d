package breaker

import (
	"sync"
	"time"
)

const (
	// DefaultThreshold is the consecutive-failure count that trips a provider.
	DefaultThreshold = 5
	// DefaultCooldown is how long a tripped provider stays out of rotation.
	DefaultCooldown = 60 * time.Second
)

// Breaker tracks consecutive failures per provider and takes a provider out
// of rotation once it trips. A tripped provider is indistinguishable from an
// unconfigured one to callers until the cooldown elapses.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	states    map[string]*state
}

type state struct {
	failures     int
	trippedUntil time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithThreshold overrides the consecutive-failure trip threshold.
func WithThreshold(n int) Option {
	return func(b *Breaker) { b.threshold = n }
}

// WithCooldown overrides the open-state duration.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) { b.cooldown = d }
}

// WithClock overrides the time source. Tests use it to step through the
// cooldown without sleeping.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

func New(opts ...Option) *Breaker {
	b := &Breaker{
		threshold: DefaultThreshold,
		cooldown:  DefaultCooldown,
		now:       time.Now,
		states:    make(map[string]*state),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether the provider may receive traffic. An elapsed cooldown
// closes the circuit and resets the failure count before reporting.
func (b *Breaker) Allow(provider string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.states[provider]
	if !ok {
		return true
	}
	if s.trippedUntil.IsZero() {
		return true
	}
	if b.now().Before(s.trippedUntil) {
		return false
	}
	s.trippedUntil = time.Time{}
	s.failures = 0
	return true
}

// RecordFailure counts one failure against the provider and trips the circuit
// at the threshold.
func (b *Breaker) RecordFailure(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.states[provider]
	if !ok {
		s = &state{}
		b.states[provider] = s
	}
	s.failures++
	if s.failures >= b.threshold {
		s.trippedUntil = b.now().Add(b.cooldown)
	}
}

// RecordSuccess resets the provider's failure count.
func (b *Breaker) RecordSuccess(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.states[provider]; ok {
		s.failures = 0
		s.trippedUntil = time.Time{}
	}
}

// Failures returns the current consecutive-failure count for a provider.
func (b *Breaker) Failures(provider string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.states[provider]; ok {
		return s.failures
	}
	return 0
}

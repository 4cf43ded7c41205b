// Package ratelimit paces outbound model API requests.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// windowMargin is added when waiting for the sliding window to open so a
// request issued right at the boundary does not land inside it again.
const windowMargin = 25 * time.Millisecond

// Config configures request pacing behavior.
type Config struct {
	// MinGap is the minimum spacing between consecutive requests.
	// Zero disables the gap policy.
	MinGap time.Duration `yaml:"min_gap"`
	// RequestsPerMinute caps requests in any sliding 60s window.
	// Zero disables the window policy.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// DefaultConfig returns a configuration with both policies disabled.
func DefaultConfig() Config {
	return Config{}
}

// Pacer blocks callers until a request slot is available under the
// configured policies. Grant timestamps are recorded so concurrent
// callers are serialized against the same history.
type Pacer struct {
	mu     sync.Mutex
	config Config
	window time.Duration
	grants []time.Time
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

// NewPacer creates a pacer with a 60 second sliding window.
func NewPacer(config Config) *Pacer {
	return &Pacer{
		config: config,
		window: time.Minute,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Acquire blocks until a request may be issued, then records the grant.
// It returns early with the context error if ctx is cancelled.
func (p *Pacer) Acquire(ctx context.Context) error {
	for {
		p.mu.Lock()
		now := p.now()
		p.pruneLocked(now)

		wait := p.waitLocked(now)
		if wait <= 0 {
			p.grants = append(p.grants, now)
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()

		if err := p.sleep(ctx, wait); err != nil {
			return err
		}
		// Re-validate: another caller may have taken the slot while
		// this one slept.
	}
}

// waitLocked returns how long the caller must wait before a slot opens,
// or zero if one is open now.
func (p *Pacer) waitLocked(now time.Time) time.Duration {
	var wait time.Duration

	if p.config.MinGap > 0 && len(p.grants) > 0 {
		last := p.grants[len(p.grants)-1]
		if gap := p.config.MinGap - now.Sub(last); gap > wait {
			wait = gap
		}
	}

	if p.config.RequestsPerMinute > 0 && len(p.grants) >= p.config.RequestsPerMinute {
		oldest := p.grants[len(p.grants)-p.config.RequestsPerMinute]
		if until := p.window - now.Sub(oldest) + windowMargin; until > wait {
			wait = until
		}
	}

	return wait
}

func (p *Pacer) pruneLocked(now time.Time) {
	cutoff := now.Add(-p.window)
	i := 0
	for i < len(p.grants) && !p.grants[i].After(cutoff) {
		i++
	}
	// Keep the most recent grant even when it has left the window so
	// the gap policy still sees it.
	if i == len(p.grants) && i > 0 {
		i--
	}
	if i > 0 {
		p.grants = append(p.grants[:0], p.grants[i:]...)
	}
}

// Pending reports how many grants are currently inside the window.
func (p *Pacer) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	n := 0
	for _, g := range p.grants {
		if now.Sub(g) < p.window {
			n++
		}
	}
	return n
}

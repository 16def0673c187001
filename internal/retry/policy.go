// Package retry wraps single remote calls with the two recovery mechanisms the
// Zoom API needs: bounded exponential backoff for transient failures, and an
// unbounded fixed pause for payload-signalled throttling.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kippnorcal/zoom/internal/syncerr"
)

const (
	DefaultAttempts = 3
	DefaultInitial  = 4 * time.Second
	DefaultMax      = 10 * time.Second

	// ThrottlePause applies to per-unit endpoints called many times a run.
	ThrottlePause = 10 * time.Second
	// BulkThrottlePause applies to bulk listings with a tighter quota.
	BulkThrottlePause = 60 * time.Second
)

// Policy is immutable once built; derive variants with WithPause.
type Policy struct {
	attempts int
	initial  time.Duration
	max      time.Duration
	pause    time.Duration
	newTimer func() backoff.Timer
	logger   *slog.Logger
}

// Option configures a Policy.
type Option func(*Policy)

// WithAttempts sets the total number of attempts for transient failures.
func WithAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.attempts = n
		}
	}
}

// WithBackoff sets the first backoff interval and its cap.
func WithBackoff(initial, max time.Duration) Option {
	return func(p *Policy) {
		if initial > 0 {
			p.initial = initial
		}
		if max > 0 {
			p.max = max
		}
	}
}

// WithThrottlePause sets the pause taken after a throttle signal.
func WithThrottlePause(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.pause = d
		}
	}
}

// WithTimer replaces the timer used for every sleep. Tests use it to observe
// sleeps without waiting.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(p *Policy) {
		if newTimer != nil {
			p.newTimer = newTimer
		}
	}
}

// WithLogger sets the logger for pause and retry events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New returns a Policy with the connector defaults: three attempts, backoff
// 4s doubling to a 10s cap, 10s throttle pause.
func New(opts ...Option) *Policy {
	p := &Policy{
		attempts: DefaultAttempts,
		initial:  DefaultInitial,
		max:      DefaultMax,
		pause:    ThrottlePause,
		newTimer: func() backoff.Timer { return &realTimer{} },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithPause returns a copy of p with a different throttle pause.
func (p *Policy) WithPause(d time.Duration) *Policy {
	cp := *p
	if d > 0 {
		cp.pause = d
	}
	return &cp
}

// Once returns a copy of p that never retries transient failures. Throttle
// signals are still absorbed, since a throttled call was not processed. It
// suits calls that are unsafe to repeat, such as creates.
func (p *Policy) Once() *Policy {
	cp := *p
	cp.attempts = 1
	return &cp
}

// Pause returns the throttle pause of p.
func (p *Policy) Pause() time.Duration {
	return p.pause
}

func (p *Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initial
	b.MaxInterval = p.max
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.attempts-1)), ctx)
}

// Do runs call until it succeeds, fails permanently, or exhausts the retry
// budget. Throttle signals are absorbed inside a single attempt: the policy
// sleeps for its pause and issues the identical call again.
func (p *Policy) Do(ctx context.Context, op string, call func(context.Context) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		for {
			err := call(ctx)
			if err == nil {
				return nil
			}
			if syncerr.IsThrottled(err) {
				p.logger.Warn("rate limit reached; pausing",
					"op", op, "pause", p.pause.String(), "attempt", attempt)
				if serr := p.sleep(ctx, p.pause); serr != nil {
					return backoff.Permanent(serr)
				}
				continue
			}
			if syncerr.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
	}
	notify := func(err error, wait time.Duration) {
		p.logger.Warn("transient failure; retrying",
			"op", op, "attempt", attempt, "max_attempts", p.attempts,
			"wait", wait.String(), "error", err)
	}

	err := backoff.RetryNotifyWithTimer(operation, p.backOff(ctx), notify, p.newTimer())
	if err != nil && syncerr.IsTransient(err) {
		p.logger.Error("retries exhausted", "op", op, "attempts", attempt, "error", err)
	}
	return err
}

func (p *Policy) sleep(ctx context.Context, d time.Duration) error {
	t := p.newTimer()
	t.Start(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}

type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) C() <-chan time.Time {
	return t.timer.C
}

func (t *realTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = time.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *realTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

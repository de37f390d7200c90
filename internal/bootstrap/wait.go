package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNotReady is returned when a backing service did not answer its
	// readiness probe within the attempt budget.
	ErrNotReady = errors.New("backing service not ready")
	// ErrNotInitialized is returned when a client handle is used outside its
	// lifespan.
	ErrNotInitialized = errors.New("client not initialized")
	// ErrAlreadyInitialized is returned when a second client is published into
	// a handle that already holds a live one.
	ErrAlreadyInitialized = errors.New("client already initialized")
)

const defaultMultiplier = 1.5

// Probe is a cheap, idempotent liveness check.
type Probe func(ctx context.Context) error

// Policy bounds the readiness loop.
type Policy struct {
	Attempts     int
	InitialDelay time.Duration
	// MaxDelay caps the backoff. Zero means uncapped.
	MaxDelay   time.Duration
	Multiplier float64
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = defaultMultiplier
	}
	return p
}

// next returns the delay that follows d.
func (p Policy) next(d time.Duration) time.Duration {
	n := time.Duration(float64(d) * p.Multiplier)
	if p.MaxDelay > 0 && n > p.MaxDelay {
		return p.MaxDelay
	}
	return n
}

// Delays returns the sleep schedule the loop would follow if every probe
// failed. The last attempt does not sleep.
func (p Policy) Delays() []time.Duration {
	p = p.normalized()
	out := make([]time.Duration, 0, p.Attempts-1)
	delay := p.InitialDelay
	for i := 1; i < p.Attempts; i++ {
		out = append(out, delay)
		delay = p.next(delay)
	}
	return out
}

type waitOptions struct {
	logger  zerolog.Logger
	onRetry func(attempt int, err error)
}

// WaitOption customizes [WaitReady].
type WaitOption func(*waitOptions)

// WithLogger logs every failed probe at warn level.
func WithLogger(l zerolog.Logger) WaitOption {
	return func(o *waitOptions) { o.logger = l }
}

// WithRetryHook calls fn after every failed probe.
func WithRetryHook(fn func(attempt int, err error)) WaitOption {
	return func(o *waitOptions) { o.onRetry = fn }
}

// WaitReady invokes probe until it succeeds or the policy's attempts are
// exhausted. It sleeps between failures, never after the final one.
func WaitReady(ctx context.Context, name string, probe Probe, policy Policy, opts ...WaitOption) error {
	o := waitOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	policy = policy.normalized()

	var lastErr error
	delay := policy.InitialDelay
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		err := probe(ctx)
		if err == nil {
			if attempt > 1 {
				o.logger.Info().Str("service", name).Int("attempt", attempt).Msg("backing service ready")
			}
			return nil
		}
		lastErr = err
		if o.onRetry != nil {
			o.onRetry(attempt, err)
		}
		if attempt == policy.Attempts {
			break
		}

		o.logger.Warn().
			Err(err).
			Str("service", name).
			Int("attempt", attempt).
			Int("attempts", policy.Attempts).
			Dur("delay", delay).
			Msg("backing service not ready, retrying")

		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrNotReady, name, errors.Join(err, lastErr))
		}
		delay = policy.next(delay)
	}

	return fmt.Errorf("%w: %s after %d attempts: %w", ErrNotReady, name, policy.Attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

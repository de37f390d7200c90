package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errRefused = errors.New("connection refused")

func TestWaitReadySucceedsFirstTry(t *testing.T) {
	calls := 0
	probe := func(context.Context) error {
		calls++
		return nil
	}

	if err := WaitReady(context.Background(), "redis", probe, Policy{Attempts: 3, InitialDelay: 10 * time.Millisecond}); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 probe call, got %d", calls)
	}
}

func TestWaitReadySucceedsAfterRetries(t *testing.T) {
	calls := 0
	probe := func(context.Context) error {
		calls++
		if calls <= 2 {
			return errRefused
		}
		return nil
	}

	start := time.Now()
	if err := WaitReady(context.Background(), "redis", probe, Policy{Attempts: 5, InitialDelay: 10 * time.Millisecond}); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 probe calls, got %d", calls)
	}
	// 10ms then 15ms of backoff.
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("expected backoff of at least 20ms, got %v", elapsed)
	}
}

func TestWaitReadyExhaustsAttempts(t *testing.T) {
	calls := 0
	probe := func(context.Context) error {
		calls++
		return errRefused
	}

	err := WaitReady(context.Background(), "redis", probe, Policy{Attempts: 3, InitialDelay: time.Millisecond})
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if !errors.Is(err, errRefused) {
		t.Fatalf("expected last probe error to be wrapped, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 probe calls, got %d", calls)
	}
}

func TestWaitReadyRetryHookSeesEveryFailure(t *testing.T) {
	var attempts []int
	probe := func(context.Context) error { return errRefused }

	_ = WaitReady(context.Background(), "mongo", probe, Policy{Attempts: 4, InitialDelay: time.Millisecond},
		WithRetryHook(func(attempt int, err error) {
			attempts = append(attempts, attempt)
		}))

	if len(attempts) != 4 || attempts[0] != 1 || attempts[3] != 4 {
		t.Fatalf("unexpected retry hook attempts: %v", attempts)
	}
}

func TestWaitReadyStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	probe := func(context.Context) error {
		calls++
		cancel()
		return errRefused
	}

	err := WaitReady(ctx, "mongo", probe, Policy{Attempts: 10, InitialDelay: time.Second})
	if !errors.Is(err, ErrNotReady) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected ErrNotReady joined with context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected loop to stop after cancel, got %d calls", calls)
	}
}

func TestPolicyDelaysCapAtMaxDelay(t *testing.T) {
	p := Policy{Attempts: 6, InitialDelay: 2 * time.Second, MaxDelay: 3 * time.Second}
	got := p.Delays()
	want := []time.Duration{2 * time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("expected %d delays, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delay %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestPolicyDelaysUncapped(t *testing.T) {
	p := Policy{Attempts: 4, InitialDelay: 500 * time.Millisecond}
	got := p.Delays()
	want := []time.Duration{500 * time.Millisecond, 750 * time.Millisecond, 1125 * time.Millisecond}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delay %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestPolicyZeroAttemptsProbesOnce(t *testing.T) {
	calls := 0
	probe := func(context.Context) error {
		calls++
		return errRefused
	}

	if err := WaitReady(context.Background(), "redis", probe, Policy{}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single probe, got %d", calls)
	}
}

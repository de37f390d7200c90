package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// CleanupMode selects what happens to a published client whose readiness
// probe fails.
type CleanupMode uint8

const (
	// CleanupAlways closes and clears the client on every exit path.
	CleanupAlways CleanupMode = iota
	// CleanupLegacy leaves the client published and unclosed when the
	// readiness probe fails. Every other exit path still cleans up.
	CleanupLegacy
)

// ParseCleanupMode maps "always" and "legacy" to their modes. Anything else
// selects CleanupAlways.
func ParseCleanupMode(s string) CleanupMode {
	if strings.EqualFold(strings.TrimSpace(s), "legacy") {
		return CleanupLegacy
	}
	return CleanupAlways
}

func (m CleanupMode) String() string {
	if m == CleanupLegacy {
		return "legacy"
	}
	return "always"
}

// Lifespan describes how to build, probe and release one service's client.
type Lifespan[T any] struct {
	Name    string
	Build   func(ctx context.Context) (T, error)
	Probe   func(ctx context.Context, client T) error
	Close   func(client T) error
	Policy  Policy
	Cleanup CleanupMode
	Logger  zerolog.Logger
	// OnRetry, when set, is called after every failed readiness probe.
	OnRetry func(attempt int, err error)
}

// Run builds the client, publishes it into h, waits for readiness and then
// runs fn. The client is closed and h cleared when fn returns.
func (l *Lifespan[T]) Run(ctx context.Context, h *Handle[T], fn func(ctx context.Context) error) (err error) {
	if l.Build == nil || l.Probe == nil {
		return fmt.Errorf("bootstrap: lifespan %q requires Build and Probe", l.Name)
	}

	client, err := l.Build(ctx)
	if err != nil {
		return fmt.Errorf("build %s client: %w", l.Name, err)
	}
	if err := h.Set(client); err != nil {
		l.close(client)
		return err
	}

	opts := []WaitOption{WithLogger(l.Logger)}
	if l.OnRetry != nil {
		opts = append(opts, WithRetryHook(l.OnRetry))
	}
	probe := func(ctx context.Context) error { return l.Probe(ctx, client) }
	if err := WaitReady(ctx, l.Name, probe, l.Policy, opts...); err != nil {
		if l.Cleanup == CleanupLegacy {
			l.Logger.Error().Err(err).Str("service", l.Name).Msg("readiness failed, client left open")
			return err
		}
		h.Clear()
		l.close(client)
		return err
	}

	l.Logger.Info().Str("service", l.Name).Msg("client ready")

	defer func() {
		h.Clear()
		if cerr := l.close(client); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close %s client: %w", l.Name, cerr))
		}
		l.Logger.Info().Str("service", l.Name).Msg("client closed")
	}()

	return fn(ctx)
}

func (l *Lifespan[T]) close(client T) error {
	if l.Close == nil {
		return nil
	}
	err := l.Close(client)
	if err != nil {
		l.Logger.Warn().Err(err).Str("service", l.Name).Msg("client close failed")
	}
	return err
}

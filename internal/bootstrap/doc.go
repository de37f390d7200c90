// Package bootstrap brings backing-service clients up before the process accepts
// traffic and tears them down when it stops.
//
// # Readiness loop
//
// [WaitReady] polls a cheap liveness probe with bounded exponential backoff:
// every failed attempt sleeps for the current delay and then multiplies it by
// [Policy.Multiplier], capped at [Policy.MaxDelay] when one is set. Exhausting
// the attempt budget yields [ErrNotReady] wrapping the last probe error.
//
// # Handles
//
// A [Handle] is the single shared slot for one service's client. Its state is
// explicit (Unset, Ready, Closed) and [Handle.Get] fails with
// [ErrNotInitialized] outside the Ready window instead of returning a nil or
// stale client.
//
// # Lifespans
//
// [Lifespan.Run] builds the client, publishes it into the handle, waits for it
// to become ready and runs the caller's scope. [CleanupAlways] closes and
// clears on every exit path. [CleanupLegacy] leaves the client published and
// unclosed when the readiness probe fails, matching the behaviour of the
// service this one replaced.
//
// # What this package must NOT do
//
//   - Know about any particular backing service (see internal/backends).
//   - Retry anything other than the readiness probe.
package bootstrap

// Package goTodo is the trust and session core of the Todo service: password
// login, HMAC-signed access and refresh tokens, and a Redis-backed record of
// the single active token per user and token kind.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Sessions
//
// Every successful [Engine.Login] or [Engine.Refresh] overwrites the user's
// access and refresh session records. A token whose jti no longer matches its
// record fails [Engine.Validate] with [ErrSessionRevoked] even though its
// signature and expiry still verify. This gives logout-everywhere and token
// replacement without a deny-list.
//
// # Architecture boundaries
//
// goTodo exposes [Engine], [Builder], [Config] and value types. Token signing
// lives in jwt, hashing in password, session records in session and the
// authorization predicates in permission. Connection bootstrapping, login
// throttling, audit dispatch and logging live under internal/.
//
// # What this package must NOT do
//
//   - Own the Redis or Mongo clients. Callers create them (see
//     internal/bootstrap) and pass them in.
//   - Log plaintext passwords, digests or token values.
//   - Import any sub-package that re-imports goTodo.
package goTodo

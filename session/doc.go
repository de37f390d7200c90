// Package session enforces a single active token per user and token kind in
// Redis.
//
// # Key layout
//
//	session:<kind>:<username>   hash {jti, exp, <meta>...}   TTL = exp - now (>= 1s)
//
// A login for the same user and kind replaces the record atomically, which
// invalidates every token issued before it. The key format is stable: other
// processes sharing the Redis instance may read it.
//
// # What this package must NOT do
//
//   - Parse or verify tokens. Callers pass the token id and expiry.
//   - Retry failed Redis commands.
//   - Store token values or other secrets in the record.
package session

// Package jwt issues and verifies HMAC-SHA-256 bearer tokens.
//
// Tokens are compact JWS strings whose payload carries the reserved claims
// sub, iat, exp and jti, an optional roles sequence and any caller-supplied
// extra claims. Verification checks the signature before the expiry and
// normalizes a scalar roles claim into a one-element sequence, so code
// downstream of [Manager.Verify] always sees []string.
//
// # What this package must NOT do
//
//   - Touch the session store (liveness checks belong to the engine).
//   - Log token values or the signing secret.
package jwt

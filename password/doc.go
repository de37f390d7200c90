// Package password implements one-way adaptive hashing and verification of
// credentials.
//
// # Output formats
//
// New digests use bcrypt by default ($2a$<cost>$<salt+hash>). Argon2id can be
// selected instead and is encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.Verify] accepts digests of either algorithm regardless of the
// configured one, so switching algorithms does not lock existing users out.
// [Hasher.NeedsRehash] reports digests that should be upgraded on the next
// successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive digests.
//   - Return errors from verification. Every failure is a plain false.
//   - Log plaintext passwords or digests.
package password

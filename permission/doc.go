// Package permission answers role and ownership questions about an
// authenticated caller.
//
// Roles are plain strings taken from verified token claims. Every function is
// pure: inputs are never mutated and results depend only on the arguments.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import goTodo, jwt, or session.
package permission

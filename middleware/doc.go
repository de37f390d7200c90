// Package middleware adapts the engine to net/http.
//
// [ClientInfo] records the caller's IP and User-Agent in the request context
// so login throttling, session metadata and audit records can see them.
// [Guard] authenticates the bearer token and stores the [goTodo.AuthResult]
// in the context. [RequireRole] then rejects callers lacking a role.
//
// All authentication decisions are delegated to Engine.Validate; this package
// only maps outcomes to status codes: 401 for bad or revoked tokens, 403 for
// missing roles, 503 when the session store is unreachable.
package middleware

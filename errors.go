package goTodo

import (
	"errors"

	"github.com/MrEthical07/goTodo/internal/bootstrap"
	"github.com/MrEthical07/goTodo/jwt"
	"github.com/MrEthical07/goTodo/session"
)

var (
	// ErrUnauthorized is returned by guards when no valid credentials were presented.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned by Login for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by a UserProvider when no account matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrLoginRateLimited is returned by Login while the username or client IP is throttled.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrSessionRevoked is returned for a well-signed token that is no longer the
	// active one for its user and kind.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrTokenKind is returned when a refresh token is presented as an access
	// token or the other way round.
	ErrTokenKind = errors.New("wrong token kind")
	// ErrEngineNotInitialized is returned by methods of a zero Engine.
	ErrEngineNotInitialized = errors.New("engine not initialized")
)

// Re-exported sentinels so callers can match every engine error against this
// package alone.
var (
	ErrNotReady         = bootstrap.ErrNotReady
	ErrNotInitialized   = bootstrap.ErrNotInitialized
	ErrInvalidSignature = jwt.ErrInvalidSignature
	ErrExpired          = jwt.ErrExpired
	ErrConfiguration    = jwt.ErrConfiguration
	ErrRedisUnavailable = session.ErrRedisUnavailable
	ErrSessionNotFound  = session.ErrSessionNotFound
)

package goTodo

import (
	"context"
	"time"

	"github.com/MrEthical07/goTodo/permission"
)

// UserProvider looks up accounts for the Engine. Implementations return
// ErrUserNotFound (possibly wrapped) when no account matches.
type UserProvider interface {
	FindByUsername(ctx context.Context, username string) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error
}

// UserRecord is the account data the Engine needs to authenticate a user.
type UserRecord struct {
	UserID       string
	Username     string
	FullName     string
	PasswordHash string
	Roles        []string
}

// LoginResult carries a freshly issued access/refresh token pair.
type LoginResult struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	TokenID          string // jti of the access token
	ExpiresIn        int64  // seconds until the access token expires
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	UserID           string
	Username         string
	Roles            []string
}

// AuthResult is the identity behind a validated access token.
type AuthResult struct {
	UserID    string
	Username  string
	Roles     []string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasRole reports whether the authenticated user holds role.
func (a *AuthResult) HasRole(role string) bool {
	return a != nil && permission.HasRole(a.Roles, role)
}

// CanManage reports whether the authenticated user may act on targetUserID.
func (a *AuthResult) CanManage(targetUserID string) bool {
	return a != nil && permission.CanManageUser(a.UserID, targetUserID, a.Roles)
}

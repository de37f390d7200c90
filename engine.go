package goTodo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goTodo/internal/audit"
	"github.com/MrEthical07/goTodo/internal/rate"
	"github.com/MrEthical07/goTodo/jwt"
	"github.com/MrEthical07/goTodo/password"
	"github.com/MrEthical07/goTodo/session"
	"github.com/rs/zerolog"
)

// Extra claims carried by every issued token.
const (
	ClaimKind   = "kind"
	ClaimUserID = "uid"
)

// TokenTypeBearer is the token type reported in a LoginResult.
const TokenTypeBearer = "bearer"

// Engine authenticates users, issues token pairs and checks presented tokens
// against the session store. Build one with [New] and share it between
// goroutines.
type Engine struct {
	config    Config
	logger    zerolog.Logger
	users     UserProvider
	hasher    *password.Hasher
	tokens    *jwt.Manager
	sessions  *session.Store
	limiter   *rate.Limiter
	audit     *audit.Dispatcher
	metrics   *Metrics
	dummyHash string
}

// Close flushes pending audit events. The Redis client is owned by the
// caller and stays open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns the number of audit events discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Ping reports the session store round trip time.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotInitialized
	}
	return e.sessions.Ping(ctx)
}

// HashPassword hashes plaintext with the configured algorithm, for seeding
// and password changes.
func (e *Engine) HashPassword(plaintext string) (string, error) {
	if e == nil || e.hasher == nil {
		return "", ErrEngineNotInitialized
	}
	return e.hasher.Hash(plaintext)
}

// Login checks username and password and issues a new access/refresh pair.
// The pair replaces any session the user held, so previously issued tokens
// stop validating.
//
// Unknown users and wrong passwords both return ErrInvalidCredentials. While
// the username or client IP is throttled, Login returns ErrLoginRateLimited
// without looking the user up.
func (e *Engine) Login(ctx context.Context, username, plaintext string) (*LoginResult, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotInitialized
	}

	username = strings.TrimSpace(username)
	ip := ClientIPFromContext(ctx)

	if err := e.limiter.Check(ctx, username, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metrics.Inc(MetricLoginRateLimited)
			e.emitAudit(ctx, audit.EventLoginRateLimited, username, "", "", ErrLoginRateLimited)
			return nil, ErrLoginRateLimited
		}
		e.metrics.Inc(MetricBackendUnavailable)
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	user, err := e.users.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.metrics.Inc(MetricBackendUnavailable)
			e.logger.Error().Err(err).Msg("user lookup failed")
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		e.hasher.Verify(plaintext, e.dummyHash)
		return nil, e.loginFailed(ctx, username, "")
	}

	if !e.hasher.Verify(plaintext, user.PasswordHash) {
		return nil, e.loginFailed(ctx, username, user.UserID)
	}

	if err := e.limiter.Reset(ctx, username); err != nil {
		e.logger.Warn().Err(err).Msg("login throttle reset failed")
	}
	if user.Username == "" {
		user.Username = username
	}

	e.upgradeDigest(ctx, user, plaintext)

	result, err := e.issuePair(ctx, user)
	if err != nil {
		e.metrics.Inc(MetricBackendUnavailable)
		e.emitAudit(ctx, audit.EventLoginFailure, user.Username, user.UserID, "", err)
		return nil, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, audit.EventLoginSuccess, user.Username, user.UserID, result.TokenID, nil)
	return result, nil
}

func (e *Engine) loginFailed(ctx context.Context, username, userID string) error {
	e.metrics.Inc(MetricLoginFailure)
	e.emitAudit(ctx, audit.EventLoginFailure, username, userID, "", ErrInvalidCredentials)

	if err := e.limiter.Fail(ctx, username, ClientIPFromContext(ctx)); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.logger.Info().Str("username", username).Msg("login budget exhausted")
		} else {
			e.logger.Warn().Err(err).Msg("login throttle update failed")
		}
	}
	return ErrInvalidCredentials
}

// upgradeDigest replaces a digest produced with an older algorithm or lower
// cost. Failures are logged; the login still succeeds.
func (e *Engine) upgradeDigest(ctx context.Context, user UserRecord, plaintext string) {
	if !e.hasher.NeedsRehash(user.PasswordHash) {
		return
	}

	digest, err := e.hasher.Hash(plaintext)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", user.UserID).Msg("password rehash failed")
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, user.UserID, digest); err != nil {
		e.logger.Warn().Err(err).Str("user_id", user.UserID).Msg("password rehash not stored")
		return
	}

	e.metrics.Inc(MetricPasswordRehashed)
	e.emitAudit(ctx, audit.EventRehashed, user.Username, user.UserID, "", nil)
}

// Validate verifies an access token and checks that it is still the active
// session for its user.
func (e *Engine) Validate(ctx context.Context, token string) (*AuthResult, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotInitialized
	}

	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	claims, err := e.verify(token, session.KindAccess)
	if err != nil {
		return nil, err
	}

	if err := e.checkActive(ctx, claims, session.KindAccess); err != nil {
		return nil, err
	}

	return &AuthResult{
		UserID:    claims.StringClaim(ClaimUserID),
		Username:  claims.Subject,
		Roles:     claims.Roles,
		TokenID:   claims.TokenID,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Refresh exchanges an active refresh token for a new pair. Both old tokens
// stop validating. Roles are reloaded from the user provider so role changes
// take effect on refresh; a deleted user gets ErrSessionRevoked.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotInitialized
	}

	claims, err := e.verify(refreshToken, session.KindRefresh)
	if err == nil {
		err = e.checkActive(ctx, claims, session.KindRefresh)
	}
	if err != nil {
		e.refreshFailed(ctx, claims, err)
		return nil, err
	}

	user, err := e.users.FindByUsername(ctx, claims.Subject)
	switch {
	case errors.Is(err, ErrUserNotFound):
		if _, rerr := e.sessions.RevokeAll(ctx, claims.Subject); rerr != nil {
			e.logger.Warn().Err(rerr).Msg("revoke sessions of deleted user failed")
		}
		e.refreshFailed(ctx, claims, ErrSessionRevoked)
		return nil, ErrSessionRevoked
	case err != nil:
		e.metrics.Inc(MetricBackendUnavailable)
		e.refreshFailed(ctx, claims, err)
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user.Username == "" {
		user.Username = claims.Subject
	}

	result, err := e.rotatePair(ctx, user, claims.TokenID)
	if err != nil {
		if !errors.Is(err, ErrSessionRevoked) {
			e.metrics.Inc(MetricBackendUnavailable)
		}
		e.refreshFailed(ctx, claims, err)
		return nil, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, audit.EventRefreshSuccess, user.Username, user.UserID, claims.TokenID, nil)
	return result, nil
}

func (e *Engine) refreshFailed(ctx context.Context, claims *jwt.Claims, err error) {
	e.metrics.Inc(MetricRefreshFailure)

	var username, userID, jti string
	if claims != nil {
		username = claims.Subject
		userID = claims.StringClaim(ClaimUserID)
		jti = claims.TokenID
	}
	e.emitAudit(ctx, audit.EventRefreshFailure, username, userID, jti, err)
}

// Logout revokes the access and refresh sessions of username. Revoking a
// user without sessions is not an error.
func (e *Engine) Logout(ctx context.Context, username string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotInitialized
	}

	revoked, err := e.sessions.RevokeAll(ctx, username, session.KindAccess, session.KindRefresh)
	if err != nil {
		e.metrics.Inc(MetricBackendUnavailable)
		return err
	}

	e.metrics.Inc(MetricLogout)
	e.metrics.Add(MetricSessionRevoked, uint64(revoked))
	e.emitAudit(ctx, audit.EventLogout, username, "", "", nil)
	return nil
}

// verify checks signature, expiry and the kind claim.
func (e *Engine) verify(token, kind string) (*jwt.Claims, error) {
	claims, err := e.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			e.metrics.Inc(MetricTokenExpired)
		} else {
			e.metrics.Inc(MetricTokenInvalid)
		}
		return nil, err
	}

	if claims.StringClaim(ClaimKind) != kind {
		e.metrics.Inc(MetricTokenKindMismatch)
		return claims, ErrTokenKind
	}
	return claims, nil
}

func (e *Engine) checkActive(ctx context.Context, claims *jwt.Claims, kind string) error {
	active, err := e.sessions.IsActive(ctx, claims.Subject, claims.TokenID, kind)
	if err != nil {
		e.metrics.Inc(MetricBackendUnavailable)
		return err
	}
	if !active {
		e.metrics.Inc(MetricSessionInactive)
		return ErrSessionRevoked
	}
	return nil
}

// issuePair signs an access and a refresh token for user and records both as
// the user's only active sessions in one transaction.
func (e *Engine) issuePair(ctx context.Context, user UserRecord) (*LoginResult, error) {
	access, refresh, err := e.signPair(user)
	if err != nil {
		return nil, err
	}

	meta := sessionMeta(ctx, user.UserID)
	if err := e.sessions.SavePair(ctx, user.Username, sessionEntry(access, session.KindAccess), sessionEntry(refresh, session.KindRefresh), meta); err != nil {
		return nil, err
	}
	e.metrics.Add(MetricSessionStored, 2)

	return newLoginResult(user, access, refresh), nil
}

// rotatePair is issuePair for Refresh. Both records are replaced only while
// prevRefreshJTI is still active, so of several concurrent refreshes with the
// same token exactly one wins; the others get ErrSessionRevoked. A failed
// write leaves the presented refresh token usable.
func (e *Engine) rotatePair(ctx context.Context, user UserRecord, prevRefreshJTI string) (*LoginResult, error) {
	access, refresh, err := e.signPair(user)
	if err != nil {
		return nil, err
	}

	meta := sessionMeta(ctx, user.UserID)
	swapped, err := e.sessions.RotatePair(ctx, user.Username, prevRefreshJTI, sessionEntry(refresh, session.KindRefresh), sessionEntry(access, session.KindAccess), meta)
	if err != nil {
		return nil, err
	}
	if !swapped {
		e.metrics.Inc(MetricSessionInactive)
		return nil, ErrSessionRevoked
	}
	e.metrics.Add(MetricSessionStored, 2)

	return newLoginResult(user, access, refresh), nil
}

func sessionEntry(token *jwt.Token, kind string) session.Entry {
	return session.Entry{Kind: kind, TokenID: token.ID, ExpiresAt: token.ExpiresAt.Unix()}
}

func (e *Engine) signPair(user UserRecord) (access, refresh *jwt.Token, err error) {
	access, err = e.issue(user, session.KindAccess, e.config.JWT.AccessTTL)
	if err != nil {
		return nil, nil, err
	}
	refresh, err = e.issue(user, session.KindRefresh, e.config.JWT.RefreshTTL)
	if err != nil {
		return nil, nil, err
	}
	return access, refresh, nil
}

func newLoginResult(user UserRecord, access, refresh *jwt.Token) *LoginResult {
	return &LoginResult{
		AccessToken:      access.Value,
		RefreshToken:     refresh.Value,
		TokenType:        TokenTypeBearer,
		TokenID:          access.ID,
		ExpiresIn:        int64(access.ExpiresAt.Sub(access.IssuedAt) / time.Second),
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
		UserID:           user.UserID,
		Username:         user.Username,
		Roles:            append([]string(nil), user.Roles...),
	}
}

func (e *Engine) issue(user UserRecord, kind string, ttl time.Duration) (*jwt.Token, error) {
	token, err := e.tokens.Issue(user.Username, jwt.IssueOptions{
		Roles: user.Roles,
		TTL:   ttl,
		ExtraClaims: map[string]any{
			ClaimKind:   kind,
			ClaimUserID: user.UserID,
		},
	})
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricTokenIssued)
	return token, nil
}

func sessionMeta(ctx context.Context, userID string) map[string]any {
	meta := map[string]any{}
	if userID != "" {
		meta["user_id"] = userID
	}
	if ip := ClientIPFromContext(ctx); ip != "" {
		meta["ip"] = ip
	}
	if ua := UserAgentFromContext(ctx); ua != "" {
		meta["user_agent"] = ua
	}
	return meta
}

func (e *Engine) emitAudit(ctx context.Context, eventType, username, userID, jti string, err error) {
	if e.audit == nil {
		return
	}

	event := audit.NewEvent(eventType)
	event.Username = username
	event.UserID = userID
	event.TokenID = jti
	event.IP = ClientIPFromContext(ctx)
	event.UserAgent = UserAgentFromContext(ctx)
	event.Success = err == nil
	if err != nil {
		event.Error = err.Error()
	}

	e.audit.Emit(ctx, event)
}

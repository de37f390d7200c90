package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	goTodo "github.com/MrEthical07/goTodo"
	"github.com/MrEthical07/goTodo/metrics/export/prometheus"
	"github.com/MrEthical07/goTodo/middleware"
	"github.com/MrEthical07/goTodo/permission"
	"github.com/rs/zerolog"
)

const (
	refreshCookieName  = "refresh_token"
	healthCheckTimeout = 2 * time.Second
	maxBodyBytes       = 1 << 16
)

// healthCheck pings one backing service.
type healthCheck func(ctx context.Context) error

type routerConfig struct {
	App        goTodo.AppConfig
	Engine     *goTodo.Engine
	Metrics    bool
	TrustProxy bool
	Logger     zerolog.Logger
	Checks     map[string]healthCheck
}

type api struct {
	cfg routerConfig
}

// newRouter registers the HTTP routes. Every route sees the client IP and
// User-Agent in its request context.
func newRouter(cfg routerConfig) http.Handler {
	a := &api{cfg: cfg}
	guard := middleware.Guard(cfg.Engine)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.health)
	if cfg.Metrics {
		mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(cfg.Engine).Handler())
	}
	mux.HandleFunc("POST /auth/login", a.login)
	mux.HandleFunc("POST /auth/refresh", a.refresh)
	mux.Handle("POST /auth/logout", guard(http.HandlerFunc(a.logout)))
	mux.Handle("GET /auth/me", guard(http.HandlerFunc(a.me)))
	mux.Handle("POST /admin/users/{username}/logout",
		guard(middleware.RequireRole(permission.RoleAdmin)(http.HandlerFunc(a.adminLogout))))

	return middleware.ClientInfo(cfg.TrustProxy)(mux)
}

type healthResponse struct {
	Status       string            `json:"status"`
	AppName      string            `json:"app_name"`
	Version      string            `json:"version"`
	ConfigSource string            `json:"config_source"`
	Services     map[string]string `json:"services,omitempty"`
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status:       "healthy",
		AppName:      a.cfg.App.Name,
		Version:      a.cfg.App.Version,
		ConfigSource: a.cfg.App.ConfigSource,
	}
	status := http.StatusOK

	names := make([]string, 0, len(a.cfg.Checks))
	for name := range a.cfg.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if resp.Services == nil {
			resp.Services = make(map[string]string, len(names))
		}
		if err := a.cfg.Checks[name](ctx); err != nil {
			a.cfg.Logger.Warn().Err(err).Str("service", name).Msg("health check failed")
			resp.Services[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Services[name] = "ok"
	}

	writeJSON(w, status, resp)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	UserID       string   `json:"user_id,omitempty"`
	Username     string   `json:"username"`
	Roles        []string `json:"roles,omitempty"`
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeJSON(w, r, &body); err != nil || body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	res, err := a.cfg.Engine.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		a.writeAuthError(w, err)
		return
	}

	setRefreshCookie(w, r, res)
	writeJSON(w, http.StatusOK, newTokenResponse(res))
}

// refresh reads the refresh token from the JSON body, falling back to the
// refresh cookie set by login.
func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &body); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}
	if body.RefreshToken == "" {
		if c, err := r.Cookie(refreshCookieName); err == nil {
			body.RefreshToken = c.Value
		}
	}
	if body.RefreshToken == "" {
		writeError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}

	res, err := a.cfg.Engine.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		a.writeAuthError(w, err)
		return
	}

	setRefreshCookie(w, r, res)
	writeJSON(w, http.StatusOK, newTokenResponse(res))
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := a.cfg.Engine.Logout(r.Context(), auth.Username); err != nil {
		a.writeAuthError(w, err)
		return
	}

	clearRefreshCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) adminLogout(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	if err := a.cfg.Engine.Logout(r.Context(), username); err != nil {
		a.writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	IsAdmin   bool      `json:"is_admin"`
	TokenID   string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *api) me(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	roles := auth.Roles
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusOK, meResponse{
		UserID:    auth.UserID,
		Username:  auth.Username,
		Roles:     roles,
		IsAdmin:   auth.HasRole(permission.RoleAdmin),
		TokenID:   auth.TokenID,
		ExpiresAt: auth.ExpiresAt,
	})
}

// writeAuthError maps engine errors to HTTP statuses. Unexpected errors are
// logged and reported as 500 without detail.
func (a *api) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, goTodo.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, goTodo.ErrLoginRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many failed login attempts")
	case errors.Is(err, goTodo.ErrRedisUnavailable):
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
	case errors.Is(err, goTodo.ErrExpired),
		errors.Is(err, goTodo.ErrInvalidSignature),
		errors.Is(err, goTodo.ErrTokenKind),
		errors.Is(err, goTodo.ErrSessionRevoked):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
	default:
		a.cfg.Logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func newTokenResponse(res *goTodo.LoginResult) tokenResponse {
	return tokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    res.TokenType,
		ExpiresIn:    res.ExpiresIn,
		UserID:       res.UserID,
		Username:     res.Username,
		Roles:        res.Roles,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func setRefreshCookie(w http.ResponseWriter, r *http.Request, res *goTodo.LoginResult) {
	maxAge := int(time.Until(res.RefreshExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    res.RefreshToken,
		Path:     "/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

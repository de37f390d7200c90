package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goTodo "github.com/MrEthical07/goTodo"
)

type authResultContextKey struct{}

// Validator checks an access token. *goTodo.Engine implements it.
type Validator interface {
	Validate(ctx context.Context, token string) (*goTodo.AuthResult, error)
}

// AuthResultFromContext returns the identity stored by Guard.
func AuthResultFromContext(ctx context.Context) (*goTodo.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*goTodo.AuthResult)
	return res, ok && res != nil
}

// WithAuthResult stores res in ctx the way Guard does.
func WithAuthResult(ctx context.Context, res *goTodo.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

func Guard(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				unauthorized(w)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			res, err := v.Validate(r.Context(), token)
			if err != nil {
				if errors.Is(err, goTodo.ErrRedisUnavailable) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
		})
	}
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return token, true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

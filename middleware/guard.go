package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/linkauth"
)

// Validator is satisfied by *linkauth.Engine.
type Validator interface {
	Validate(ctx context.Context, token string) (linkauth.Principal, error)
}

// ErrorHandler writes the response for a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type principalContextKey struct{}

// PrincipalFromContext returns the principal set by RequireAccess.
func PrincipalFromContext(ctx context.Context) (linkauth.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(linkauth.Principal)
	return p, ok
}

// WithPrincipal stores p in ctx the way RequireAccess does.
func WithPrincipal(ctx context.Context, p linkauth.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// RequireAccess authenticates the Bearer access token and injects the
// principal into the request context. onError may be nil.
func RequireAccess(v Validator, onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				onError(w, r, linkauth.ErrEngineNotReady)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				onError(w, r, linkauth.ErrUnauthorized)
				return
			}

			p, err := v.Validate(r.Context(), token)
			if err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

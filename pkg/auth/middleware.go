package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	tokenHeader                 = "Authorization"
	tokenPrefix                 = "Bearer "
	ClaimsKey        contextKey = "claims"
	AccountIDKey     contextKey = "account_id"
)

// Middleware returns an HTTP middleware that authenticates requests and
// injects the caller's account id into the request context.
func Middleware(signer *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get(tokenHeader)
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			if !strings.HasPrefix(authHeader, tokenPrefix) {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			token := strings.TrimPrefix(authHeader, tokenPrefix)
			claims, err := signer.ValidateToken(token)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			ctx = context.WithValue(ctx, AccountIDKey, claims.AccountID())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims retrieves the full claims from the context.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetAccountID retrieves the caller's account id from the context.
func GetAccountID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(AccountIDKey).(string)
	return id, ok
}

// MustGetAccountID retrieves the caller's account id, panicking if the
// request did not pass through the auth middleware. Handlers registered
// behind Middleware may rely on it.
func MustGetAccountID(ctx context.Context) string {
	id, ok := GetAccountID(ctx)
	if !ok {
		panic("auth: account id missing from context")
	}
	return id
}

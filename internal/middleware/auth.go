package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/royale-relay/backend/internal/auth"
	"github.com/royale-relay/backend/internal/httpx"
)

// TokenVerifier validates a bearer token.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// RevocationChecker reports logged-out token ids.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type claimsKey struct{}

// RequireAuth is middleware that validates the bearer token and injects
// its claims into the request context. revoked may be nil.
func RequireAuth(tokens TokenVerifier, revoked RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			if revoked != nil {
				isRevoked, err := revoked.IsRevoked(r.Context(), claims.TokenID)
				if err != nil {
					log.Printf("revocation lookup: %v", err)
					httpx.WriteError(w, http.StatusInternalServerError, err.Error())
					return
				}
				if isRevoked {
					httpx.WriteError(w, http.StatusUnauthorized, "token revoked")
					return
				}
			}

			ctx := WithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithClaims stores token claims on a context.
func WithClaims(ctx context.Context, claims auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFrom returns the claims injected by RequireAuth.
func ClaimsFrom(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(auth.Claims)
	return claims, ok
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

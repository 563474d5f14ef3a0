package api

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/Zymoclassic/eduplat/internal/app"
	"github.com/Zymoclassic/eduplat/internal/domain"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const principalKey contextKey = "principal"

// AuthMiddleware validates the bearer token and stores the caller in the context.
func AuthMiddleware(tokens *app.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}
			raw := strings.TrimPrefix(authHeader, "Bearer ")
			if raw == authHeader || strings.TrimSpace(raw) == "" {
				writeError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			principal, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				log.Printf("level=info component=api msg=\"token rejected\" path=%s err=%v", r.URL.Path, err)
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, *principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireKind restricts a route to one account variant.
func RequireKind(kind domain.AccountKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if principal.Ref.Kind != kind {
				writeError(w, http.StatusForbidden, "This action is only available to "+string(kind)+" accounts")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects callers whose token lacks the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !principal.IsAdmin() {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PrincipalFromContext returns the authenticated caller.
func PrincipalFromContext(ctx context.Context) (app.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(app.Principal)
	return principal, ok
}

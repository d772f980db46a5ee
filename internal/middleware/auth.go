// Package middleware provides HTTP middleware for tenant authentication,
// request IDs, and rate limiting.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"retailmetrics/internal/domain"
)

// TenantAuth validates an HS256 Bearer token and resolves the tenant scope
// from its claims. Tokens carry tenant_id (required), and optionally
// location_id when scoped to a single location. The subject claim becomes
// the principal recorded in query history.
func TenantAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			token, err := jwt.Parse(strings.TrimPrefix(auth, "Bearer "), func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				writeUnauthorized(w, "invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeUnauthorized(w, "invalid token claims")
				return
			}
			tenantID, _ := claims["tenant_id"].(string)
			if tenantID == "" {
				writeUnauthorized(w, "token has no tenant_id claim")
				return
			}

			tc := domain.TenantContext{TenantID: tenantID}
			if loc, ok := claims["location_id"].(string); ok {
				tc.LocationID = loc
			}
			if sub, ok := claims["sub"].(string); ok {
				tc.PrincipalID = sub
			}

			next.ServeHTTP(w, r.WithContext(domain.WithTenant(r.Context(), tc)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    http.StatusUnauthorized,
		"message": "unauthorized: " + msg,
	})
}

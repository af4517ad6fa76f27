package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload of the bearer token issued by the web frontend
// after sign-in. Only the subject is load-bearing; the profile fields are
// informational.
type SessionClaims struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// UserProvisioner creates the user row on first contact. The auth layer calls
// it so every authenticated request downstream can assume the user exists.
type UserProvisioner interface {
	Provision(ctx context.Context, userID string) error
}

type userKey string

const userIDKey userKey = "user_id"

// AuthJWT validates the bearer token and provisions the user before passing
// the request on. Requests without a valid HS256 token get a JSON 401.
func AuthJWT(secret string, users UserProvisioner) func(http.Handler) http.Handler {
	keyFunc := func(*jwt.Token) (any, error) { return []byte(secret), nil }
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "missing authorization header")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w, "authorization header must be a bearer token")
				return
			}

			claims := &SessionClaims{}
			_, err := jwt.ParseWithClaims(parts[1], claims, keyFunc,
				jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || claims.Subject == "" {
				unauthorized(w, "invalid or expired token")
				return
			}

			if users != nil {
				if err := users.Provision(r.Context(), claims.Subject); err != nil {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{"error": "could not load user"})
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), claims.Subject)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// UserIDFromContext returns the authenticated user, or "" outside the auth
// group.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithUserID stamps the authenticated user onto the context.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if strings.TrimSpace(userID) == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, userID)
}

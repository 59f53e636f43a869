package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oceralabs/ocera/internal/domain"
)

type userKey struct{}

// AuthUser is the authenticated principal placed on the request context.
type AuthUser struct {
	ID    string
	Email string
}

// UserFrom extracts the authenticated user from the context.
func UserFrom(ctx context.Context) (AuthUser, bool) {
	u, ok := ctx.Value(userKey{}).(AuthUser)
	return u, ok
}

// RequireAuth verifies the Bearer token (HS256, shared secret with the
// identity provider) and ensures a user row exists for the subject. Webhook
// and health routes are mounted outside this middleware.
func RequireAuth(secret string, users domain.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authUser, err := authenticate(r, secret)
			if err != nil {
				writeError(w, r, err, nil)
				return
			}
			if _, err := users.Ensure(r.Context(), authUser.ID, authUser.Email); err != nil {
				writeError(w, r, fmt.Errorf("op=auth: %w", err), nil)
				return
			}
			ctx := context.WithValue(r.Context(), userKey{}, authUser)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, secret string) (AuthUser, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return AuthUser{}, fmt.Errorf("%w: missing authorization header", domain.ErrUnauthorized)
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return AuthUser{}, fmt.Errorf("%w: authorization header must be a bearer token", domain.ErrUnauthorized)
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return AuthUser{}, fmt.Errorf("%w: invalid token: %v", domain.ErrUnauthorized, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return AuthUser{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}
	email, _ := claims["email"].(string)
	return AuthUser{ID: sub, Email: email}, nil
}

package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// devUserID identifies requests when no Supabase project is configured.
const devUserID = "dev-user"

type contextKey int

const userKey contextKey = iota

// User is the authenticated caller injected into the request context.
type User struct {
	ID    string
	Email string
	Role  string
}

// UserFromContext extracts the authenticated user from the request context.
func UserFromContext(ctx context.Context) *User {
	if u, ok := ctx.Value(userKey).(*User); ok {
		return u
	}
	return nil
}

// WithUser returns a context carrying the given user. Exposed for tests.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

type supabaseClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	// WebSocket clients cannot set headers from the browser.
	return r.URL.Query().Get("token")
}

func validateToken(ctx context.Context, jwks *JWKSClient, tokenString string) (*User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &supabaseClaims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}
		return jwks.Key(ctx, kid)
	},
		jwt.WithValidMethods([]string{"ES256", "RS256"}),
		jwt.WithAudience("authenticated"),
	)
	if err != nil {
		return nil, fmt.Errorf("parse jwt: %w", err)
	}

	claims, ok := token.Claims.(*supabaseClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid jwt claims")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("jwt missing subject")
	}

	return &User{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// Middleware validates the request's JWT against the project JWKS and injects
// the caller into the context. A nil jwks client disables validation and
// injects a fixed development identity instead.
func Middleware(jwks *JWKSClient) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if jwks == nil {
				ctx := WithUser(r.Context(), &User{ID: devUserID, Role: "authenticated"})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			tokenString := tokenFromRequest(r)
			if tokenString == "" {
				http.Error(w, `{"error":"missing credentials"}`, http.StatusUnauthorized)
				return
			}

			user, err := validateToken(r.Context(), jwks, tokenString)
			if err != nil {
				http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

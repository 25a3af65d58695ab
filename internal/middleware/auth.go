package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// RoleAdmin may run maintenance endpoints
const RoleAdmin = "admin"

// Identity is the caller established by a verified bearer token
type Identity struct {
	UserID int64
	Role   string
}

// Claims are the token claims the service reads. user_id may be a number or a numeric string.
type Claims struct {
	UserID json.Number `json:"user_id"`
	Role   string      `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ErrorWriter writes an authentication or authorization failure
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, code, message string)

// AuthMiddleware verifies HS256 bearer tokens signed with secret
func AuthMiddleware(secret []byte, writeErr ErrorWriter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := ParseToken(secret, r.Header.Get("Authorization"))
			if err != nil {
				writeErr(w, r, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose token does not carry role
func RequireRole(role string, writeErr ErrorWriter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFrom(r.Context())
			if !ok {
				writeErr(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			if identity.Role != role {
				writeErr(w, r, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ParseToken validates an "Authorization: Bearer <token>" header value
func ParseToken(secret []byte, header string) (Identity, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return Identity{}, errors.New("authorization header is missing")
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Identity{}, errors.New("invalid or expired token")
	}

	userID, err := strconv.ParseInt(claims.UserID.String(), 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, fmt.Errorf("invalid user_id claim %q", claims.UserID)
	}
	return Identity{UserID: userID, Role: claims.Role}, nil
}

// IdentityFrom returns the caller set by AuthMiddleware
func IdentityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// NewToken signs a token for userID. Token issuance belongs to the identity
// provider; this exists for tests and local tooling.
func NewToken(secret []byte, userID int64, role string) (string, error) {
	claims := Claims{
		UserID: json.Number(strconv.FormatInt(userID, 10)),
		Role:   role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

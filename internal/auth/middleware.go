// internal/auth/middleware.go
// Bearer token middleware for the match store API

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/turumi/turumi-match/internal/common/utils"
)

// CodeTokenExpired is the error code clients key their refresh flow on.
const CodeTokenExpired = "ACCESS_TOKEN_EXPIRED"

// ErrTokenExpired must be returned by a TokenValidator for a well-signed
// token whose exp has passed.
var ErrTokenExpired = errors.New("access token expired")

// TokenValidator verifies a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error)
}

type contextKey string

const (
	userIDKey contextKey = "userID"
	emailKey  contextKey = "email"
)

// Middleware provides authentication middleware
type Middleware struct {
	validator TokenValidator
}

func NewMiddleware(validator TokenValidator) *Middleware {
	return &Middleware{validator: validator}
}

// Authenticate rejects requests without a valid access token and stores the
// caller in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token == "" {
			utils.RespondWithError(w, http.StatusUnauthorized, "Missing or invalid authorization header")
			return
		}

		claims, err := m.validator.ValidateToken(r.Context(), token)
		if errors.Is(err, ErrTokenExpired) {
			utils.RespondWithErrorCode(w, http.StatusUnauthorized, CodeTokenExpired, "", "Access token expired")
			return
		}
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		// Refresh tokens only work on the refresh endpoint
		if claims.Type != "access" {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token type")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.UserID, claims.Email)))
	})
}

// ExtractToken reads "Authorization: Bearer <token>", falling back to the
// accesstoken header older clients send, then to the ?token= query
// parameter used by browser websockets.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if t := r.Header.Get("accesstoken"); t != "" {
		return strings.TrimSpace(t)
	}
	return r.URL.Query().Get("token")
}

// WithUser returns ctx carrying the authenticated user.
func WithUser(ctx context.Context, userID int64, email string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, emailKey, email)
}

// GetUserIDFromContext extracts user ID from request context
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey).(int64)
	return userID, ok
}

// GetEmailFromContext extracts email from request context
func GetEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok
}

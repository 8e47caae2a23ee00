// internal/common/utils/jwt.go
// JWT token generation and validation

package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// JWTClaims carries the fields the match store puts in its tokens
type JWTClaims struct {
	UserID    int64
	Email     string
	Type      string // "access" or "refresh"
	ExpiresAt int64
	IssuedAt  int64
	Issuer    string
	ID        string // jti
	SessionID string // sid, shared by the tokens of one login
}

// Expired reports whether the claims carry an expiry at or before now.
// Tokens without an exp claim never expire here.
func (c *JWTClaims) Expired(now time.Time) bool {
	return c.ExpiresAt != 0 && now.Unix() >= c.ExpiresAt
}

// GenerateJWT creates a new HS256 token
func GenerateJWT(claims *JWTClaims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": fmt.Sprintf("%d", claims.UserID),
		"email":   claims.Email,
		"type":    claims.Type,
		"exp":     claims.ExpiresAt,
		"iat":     claims.IssuedAt,
		"iss":     claims.Issuer,
		"jti":     claims.ID,
		"sid":     claims.SessionID,
		"sub":     fmt.Sprintf("%d", claims.UserID),
	})

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns claims
func ValidateJWT(tokenString string, secret string) (*JWTClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claimsFromMap(claims)
}

// IsTokenExpired reports whether err means a correctly signed token whose exp
// has passed.
func IsTokenExpired(err error) bool {
	var ve *jwt.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	return ve.Errors == jwt.ValidationErrorExpired
}

// PeekJWT decodes a token without verifying its signature. Clients use it to
// read exp and user_id from a bearer credential they cannot verify.
func PeekJWT(tokenString string) (*JWTClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(tokenString, claims); err != nil {
		return nil, err
	}
	return claimsFromMap(claims)
}

func claimsFromMap(claims jwt.MapClaims) (*JWTClaims, error) {
	out := &JWTClaims{
		Email:     getStringClaim(claims, "email"),
		Type:      getStringClaim(claims, "type"),
		ExpiresAt: getInt64Claim(claims, "exp"),
		IssuedAt:  getInt64Claim(claims, "iat"),
		Issuer:    getStringClaim(claims, "iss"),
		ID:        getStringClaim(claims, "jti"),
		SessionID: getStringClaim(claims, "sid"),
	}

	// user_id is written as a string; other issuers send a number.
	switch v := claims["user_id"].(type) {
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.New("invalid user_id format")
		}
		out.UserID = id
	case float64:
		out.UserID = int64(v)
	case nil:
	default:
		return nil, errors.New("invalid user_id in token")
	}

	return out, nil
}

// Helper functions to safely extract claims
func getStringClaim(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}

func getInt64Claim(claims jwt.MapClaims, key string) int64 {
	if val, ok := claims[key].(float64); ok {
		return int64(val)
	}
	return 0
}

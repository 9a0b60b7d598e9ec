package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// tokens are HMAC signed with the shared JWT secret
var tokenParser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))

// replaced in tests
var parseJWT = func(tokenStr string, keyFunc jwt.Keyfunc) (*jwt.Token, error) {
	return tokenParser.Parse(tokenStr, keyFunc)
}

var (
	ErrMissingAuthHeader = errors.New("missing or malformed Authorization header")
	ErrInvalidToken      = errors.New("invalid token")
	ErrInvalidClaims     = errors.New("invalid token claims")
)

// VerifyToken validates the bearer token of r against an HMAC secret and
// returns its claims.
func VerifyToken(r *http.Request, secret string) (jwt.MapClaims, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
		return nil, ErrMissingAuthHeader
	}
	tokenStr := strings.TrimPrefix(authz, "Bearer ")

	token, err := parseJWT(tokenStr, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

// UserIDFromClaims reads "sub" as a string
func UserIDFromClaims(claims jwt.MapClaims) (string, error) {
	switch v := claims["sub"].(type) {
	case string:
		if v == "" {
			return "", ErrInvalidClaims
		}
		return v, nil
	case float64:
		// JWT numbers get decoded as float64
		return fmt.Sprintf("%d", int64(v)), nil
	default:
		return "", ErrInvalidClaims
	}
}

// RoleFromClaims returns the "role" claim, empty when absent
func RoleFromClaims(claims jwt.MapClaims) string {
	role, _ := claims["role"].(string)
	return role
}

package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// parseUnverified decodes the claims of a JWT without checking its signature.
// The result is for display only and must never gate access.
func parseUnverified(token string) (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// Subject returns the sub claim of a JWT access token.
func Subject(token string) (string, bool) {
	claims, ok := parseUnverified(token)
	if !ok {
		return "", false
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

// Expiry returns the exp claim of a JWT access token.
func Expiry(token string) (time.Time, bool) {
	claims, ok := parseUnverified(token)
	if !ok {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

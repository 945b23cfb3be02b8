package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimDuration is the claim holding the token's validity window in seconds.
const ClaimDuration = "duration"

// decodeClaims reads the token payload. The signature is not verified.
func decodeClaims(token string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	return claims, nil
}

// tokenDuration returns the validity window, or 0 when the claim is missing.
func tokenDuration(claims map[string]any) time.Duration {
	var secs float64
	switch v := claims[ClaimDuration].(type) {
	case float64:
		secs = v
	case int:
		secs = float64(v)
	case int64:
		secs = float64(v)
	default:
		return 0
	}
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

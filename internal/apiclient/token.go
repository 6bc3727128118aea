// ABOUTME: Reads the expiry of the backend API token
// ABOUTME: The console never holds the signing key, so claims are read unverified

package apiclient

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry returns the exp claim of a JWT. ok is false when the token
// has no expiry. Opaque (non-JWT) tokens return an error.
func TokenExpiry(token string) (exp time.Time, ok bool, err error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false, fmt.Errorf("parsing token: %w", err)
	}

	nd, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading exp claim: %w", err)
	}
	if nd == nil {
		return time.Time{}, false, nil
	}
	return nd.Time, true, nil
}

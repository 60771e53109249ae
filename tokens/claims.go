package tokens

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// The client cannot verify signatures (it has no key); claims are read only to bound
// how long a credential is kept, never to decide whether it is valid.
var claimsParser = jwt.NewParser()

// lifetime returns how long a credential should be persisted: the remaining life of a
// JWT's exp claim, capped at max. Opaque or already-expired tokens get max and the
// backend decides.
func lifetime(raw string, max time.Duration, now time.Time) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := claimsParser.ParseUnverified(raw, claims); err != nil {
		return max
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return max
	}
	remaining := exp.Sub(now)
	if remaining <= 0 || remaining > max {
		return max
	}
	return remaining
}

// UserID returns the user_id (simplejwt) or sub claim of a token, or "" when the
// token is not a JWT.
func UserID(raw string) string {
	claims := jwt.MapClaims{}
	if _, _, err := claimsParser.ParseUnverified(raw, claims); err != nil {
		return ""
	}
	if id, ok := claims["user_id"]; ok {
		switch v := id.(type) {
		case float64:
			return fmt.Sprintf("%.0f", v)
		case string:
			return v
		}
	}
	sub, _ := claims.GetSubject()
	return sub
}

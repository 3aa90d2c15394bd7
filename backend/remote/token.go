package remote

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// idToken is the parsed view of a provider-issued ID token. The client
// reads claims without verifying the signature: the token is presented back
// to the provider, which is the party that verifies it.
type idToken struct {
	Raw         string
	UserID      string
	Email       string
	DisplayName string
	ExpiresAt   time.Time
}

func parseIDToken(raw string) (*idToken, error) {
	if raw == "" {
		return nil, errors.New("empty id token")
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, err
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("id token missing subject")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("id token missing expiry")
	}

	tok := &idToken{
		Raw:       raw,
		UserID:    sub,
		ExpiresAt: exp.Time,
	}
	if email, ok := claims["email"].(string); ok {
		tok.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		tok.DisplayName = name
	}
	return tok, nil
}

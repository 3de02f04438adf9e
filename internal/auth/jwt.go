package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gigline/internal/domain"
)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// SignToken issues an HS256 token whose subject is the party id.
func SignToken(secret, issuer string, c Caller, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	if strings.TrimSpace(c.PartyID) == "" {
		return "", errors.New("party id required")
	}
	rc := jwt.RegisteredClaims{
		Subject:  c.PartyID,
		Issuer:   issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		rc.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{RegisteredClaims: rc, Role: string(c.Role)})
	return token.SignedString([]byte(secret))
}

// ParseToken verifies an HS256 token and returns the caller it names. A
// non-empty issuer must match the token's iss claim.
func ParseToken(token, secret, issuer string) (Caller, error) {
	if strings.TrimSpace(secret) == "" {
		return Caller{}, errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)
	cl := &claims{}
	parsed, err := parser.ParseWithClaims(token, cl, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Caller{}, err
	}
	if !parsed.Valid {
		return Caller{}, errors.New("invalid token")
	}
	if cl.Subject == "" {
		return Caller{}, errors.New("subject claim required")
	}
	c := Caller{PartyID: cl.Subject, Source: "jwt"}
	if cl.Role != "" {
		role, err := domain.ParseRole(cl.Role)
		if err != nil {
			return Caller{}, err
		}
		c.Role = role
	}
	return c, nil
}

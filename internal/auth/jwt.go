package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const clockSkew = 30 * time.Second

// Claims carries the staff role; the registered subject names the person
// recorded in audit entries.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueJWT signs an HS256 token for subject valid for ttl.
func IssueJWT(secret []byte, subject string, role Role, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("auth: empty secret")
	}
	if _, ok := ParseRole(string(role)); !ok || subject == "" {
		return "", errors.New("auth: subject and valid role required")
	}
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseJWT validates an HS256 token and returns the caller it names.
func ParseJWT(tokenString string, secret []byte) (Identity, error) {
	if tokenString == "" {
		return Identity{}, errors.New("auth: empty token")
	}
	if len(secret) == 0 {
		return Identity{}, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		return Identity{}, err
	}
	if claims.Subject == "" {
		return Identity{}, errors.New("auth: missing subject")
	}
	role, ok := ParseRole(claims.Role)
	if !ok {
		return Identity{}, errors.New("auth: invalid role")
	}
	return Identity{Subject: claims.Subject, Role: role}, nil
}

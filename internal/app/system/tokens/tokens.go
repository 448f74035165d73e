// internal/app/system/tokens/tokens.go

// Package tokens issues and validates the signed bearer tokens members
// present on each request. Tokens are stateless: there is no revocation
// list, so a leaked token stays valid until its natural expiry. The
// signing key is process-wide configuration loaded once at startup.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/unestilodevida/cellhub/internal/domain/models"
)

// ErrInvalidToken is returned for any token that fails to parse, fails
// signature verification, or has expired. Callers never learn which;
// validation fails closed.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the identity claim set carried by an issued token.
// Subject is the member's email.
type Claims struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	jwt.RegisteredClaims
}

// Service signs and verifies bearer tokens with a symmetric HS256 key.
type Service struct {
	key []byte
	ttl time.Duration
}

// New creates a token Service. The secret must be non-empty; TTL bounds
// the lifetime of every issued token.
func New(secret string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, errors.New("tokens: empty signing secret")
	}
	if ttl <= 0 {
		return nil, errors.New("tokens: non-positive TTL")
	}
	return &Service{key: []byte(secret), ttl: ttl}, nil
}

// TTL returns the configured token lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue produces a signed token for the member with subject set to the
// member's email and expiry now+TTL.
func (s *Service) Issue(m *models.Member) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:     m.Email,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   m.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("tokens: sign: %w", err)
	}
	return signed, nil
}

// Validate verifies signature and expiry and returns the claims.
// Every failure mode collapses into ErrInvalidToken.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// ValidFor reports whether the token is valid and its subject matches
// the expected email.
func (s *Service) ValidFor(tokenString, email string) bool {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return false
	}
	return claims.Subject == email
}

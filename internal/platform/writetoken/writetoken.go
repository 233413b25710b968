// Package writetoken issues and verifies the bearer tokens that authorize
// registry mutations. Tokens are HS256 JWTs signed with a shared secret; the
// subject names the caller and is recorded as the actor of change events.
package writetoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is stamped on every token and required on verification.
const Issuer = "crboard"

var (
	ErrInvalid = errors.New("invalid write token")
	ErrExpired = errors.New("write token has expired")
)

// Claims are the registered claims of a write token.
type Claims struct {
	jwt.RegisteredClaims
}

type Signer struct {
	key []byte
	now func() time.Time
}

// New returns a signer for secret. An empty secret is rejected so a
// misconfigured server cannot accept tokens signed with an empty key.
func New(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("write token secret is required")
	}
	return &Signer{key: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for subject. A zero ttl issues a token without expiry.
func (s *Signer) Issue(subject string, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	now := s.now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  subject,
		Issuer:   Issuer,
		IssuedAt: jwt.NewNumericDate(now),
		ID:       uuid.NewString(),
	}}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign write token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, issuer and expiry of token and returns its
// subject.
func (s *Signer) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpired
		}
		return "", ErrInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalid
	}
	return claims.Subject, nil
}

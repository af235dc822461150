package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"careerlink-auth/internal/model"
)

const DefaultLifetime = 7 * 24 * time.Hour

var (
	// ErrMissingSecret is returned when no signing secret is configured.
	ErrMissingSecret = errors.New("jwt signing secret is not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

// Claims is the payload of a session token: the user id, role and the
// registered iat/exp/sub claims.
type Claims struct {
	UserID string     `json:"id"`
	Role   model.Role `json:"role"`
	jwtv5.RegisteredClaims
}

type Issuer struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

type Option func(*Issuer)

// WithClock overrides the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(secret string, lifetime time.Duration, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}

	i := &Issuer{secret: []byte(secret), lifetime: lifetime, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}

	return i, nil
}

func (i *Issuer) Lifetime() time.Duration {
	return i.lifetime
}

func (i *Issuer) IssueToken(userID string, role model.Role) (string, error) {
	if i == nil || len(i.secret) == 0 {
		return "", ErrMissingSecret
	}

	issuedAt := i.now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwtv5.NewNumericDate(issuedAt),
			ExpiresAt: jwtv5.NewNumericDate(issuedAt.Add(i.lifetime)),
		},
	}

	token, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return token, nil
}

// ParseToken verifies the signature and expiry of tokenString and returns its
// claims. Only HS256 is accepted.
func (i *Issuer) ParseToken(tokenString string) (*Claims, error) {
	if i == nil || len(i.secret) == 0 {
		return nil, ErrMissingSecret
	}

	claims := &Claims{}
	token, err := jwtv5.ParseWithClaims(tokenString, claims, func(t *jwtv5.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, err
	}

	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

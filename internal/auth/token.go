// Package auth turns bearer tokens into the request principal. Login and
// password handling belong to the identity service that mints the tokens.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ferreexpress/ferreexpress/internal/shared"
)

var signingMethod = jwt.SigningMethodHS256

// Claims carries the principal inside the JWT.
type Claims struct {
	Role     shared.Role `json:"rol"`
	Email    string      `json:"email"`
	Username string      `json:"username"`
	jwt.RegisteredClaims
}

// TokenConfig configures minting and verification.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Tokens mints and parses access tokens.
type Tokens struct {
	cfg TokenConfig
}

// NewTokens validates cfg and returns Tokens.
func NewTokens(cfg TokenConfig) (*Tokens, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Tokens{cfg: cfg}, nil
}

// Mint issues a signed token for p.
func (t *Tokens) Mint(p shared.Principal, now time.Time) (string, error) {
	if p.ID <= 0 {
		return "", errors.New("auth: principal id required")
	}
	if !p.Role.Valid() {
		return "", fmt.Errorf("auth: invalid role %q", p.Role)
	}
	claims := Claims{
		Role:     p.Role,
		Email:    p.Email,
		Username: p.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.ID, 10),
			Issuer:    t.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.TTL)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(t.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("auth: signing jwt: %w", err)
	}
	return signed, nil
}

// Parse validates raw and returns the principal it carries.
func (t *Tokens) Parse(raw string) (shared.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{signingMethod.Alg()})}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return []byte(t.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return shared.Principal{}, fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return shared.Principal{}, fmt.Errorf("%w: invalid subject", shared.ErrUnauthorized)
	}
	if !claims.Role.Valid() {
		return shared.Principal{}, fmt.Errorf("%w: invalid role", shared.ErrUnauthorized)
	}
	return shared.Principal{ID: id, Role: claims.Role, Email: claims.Email, Username: claims.Username}, nil
}

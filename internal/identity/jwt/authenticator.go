// Package jwt implements identity.Authenticator with HS256 tokens.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/identity"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

const defaultTokenDuration = 12 * time.Hour

// ErrMissingSecret is returned when no signing secret is configured.
var ErrMissingSecret = errors.New("jwt secret is required")

// Config holds JWT settings.
type Config struct {
	SecretKey     string
	Issuer        string
	TokenDuration time.Duration
}

type claims struct {
	Name  string `json:"name"`
	Level int    `json:"lvl"`
	jwtlib.RegisteredClaims
}

// Authenticator signs and verifies access tokens.
type Authenticator struct {
	config Config
	now    func() time.Time
}

// NewAuthenticator creates a JWT authenticator.
func NewAuthenticator(config Config) (*Authenticator, error) {
	if config.SecretKey == "" {
		return nil, ErrMissingSecret
	}
	if config.TokenDuration <= 0 {
		config.TokenDuration = defaultTokenDuration
	}
	if config.Issuer == "" {
		config.Issuer = "guildhall"
	}
	return &Authenticator{config: config, now: time.Now}, nil
}

// GenerateToken issues a signed token for user.
func (a *Authenticator) GenerateToken(_ context.Context, user *domain.User) (*identity.Token, error) {
	now := a.now()
	expires := now.Add(a.config.TokenDuration)

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims{
		Name:  user.Name,
		Level: user.RoleLevel,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    a.config.Issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expires),
		},
	})

	signed, err := token.SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &identity.Token{AccessToken: signed, ExpiresAt: expires}, nil
}

// ParseToken verifies the signature and expiry of token.
func (a *Authenticator) ParseToken(_ context.Context, token string) (*identity.Claims, error) {
	var c claims
	parsed, err := jwtlib.ParseWithClaims(token, &c, func(*jwtlib.Token) (interface{}, error) {
		return []byte(a.config.SecretKey), nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(a.config.Issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", identity.ErrInvalidToken, err)
	}
	if !parsed.Valid || c.Subject == "" {
		return nil, identity.ErrInvalidToken
	}

	return &identity.Claims{
		UserID:    c.Subject,
		Name:      c.Name,
		Level:     c.Level,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// Type returns the authenticator kind.
func (a *Authenticator) Type() string {
	return "jwt"
}

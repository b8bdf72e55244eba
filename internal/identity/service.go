// Package identity handles login and access token validation.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/pkg/httputil"
	"github.com/bissquit/guildhall/internal/pkg/metrics"
)

// Claims are the facts carried by an access token.
type Claims struct {
	UserID    string
	Name      string
	Level     int
	ExpiresAt time.Time
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Authenticator issues and parses access tokens.
type Authenticator interface {
	GenerateToken(ctx context.Context, user *domain.User) (*Token, error)
	ParseToken(ctx context.Context, token string) (*Claims, error)
	Type() string
}

// Service implements login and token validation.
type Service struct {
	repo Repository
	auth Authenticator
}

// NewService creates a new identity service.
func NewService(repo Repository, auth Authenticator) *Service {
	return &Service{
		repo: repo,
		auth: auth,
	}
}

// LoginInput contains login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// Login checks credentials and issues an access token.
func (s *Service) Login(ctx context.Context, input LoginInput) (*domain.User, *Token, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			metrics.RecordLogin("invalid")
			return nil, nil, ErrInvalidCredentials
		}
		metrics.RecordLogin("error")
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	ok, err := CheckPassword(user.PasswordHash, input.Password)
	if err != nil {
		metrics.RecordLogin("error")
		return nil, nil, err
	}
	if !ok {
		metrics.RecordLogin("invalid")
		return nil, nil, ErrInvalidCredentials
	}

	token, err := s.auth.GenerateToken(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate token: %w", err)
	}

	metrics.RecordLogin("ok")
	slog.Info("user logged in", "user_id", user.ID, "role_level", user.RoleLevel)
	return user, token, nil
}

// GetUserByID returns a user by ID.
func (s *Service) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ValidateToken parses token and resolves the caller. The level comes from
// the stored user, so role changes and deletions apply to live tokens.
func (s *Service) ValidateToken(ctx context.Context, token string) (httputil.Principal, error) {
	claims, err := s.auth.ParseToken(ctx, token)
	if err != nil {
		return httputil.Principal{}, ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return httputil.Principal{}, ErrInvalidToken
		}
		return httputil.Principal{}, fmt.Errorf("get user: %w", err)
	}

	return httputil.Principal{
		UserID: user.ID,
		Name:   user.Name,
		Level:  user.RoleLevel,
	}, nil
}

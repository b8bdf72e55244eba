package identity

import (
	"context"

	"github.com/bissquit/guildhall/internal/domain"
)

// Repository looks up credentials.
type Repository interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

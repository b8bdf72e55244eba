package members

import (
	"context"

	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/pkg/cursor"
)

// ListFilter narrows a roster listing.
type ListFilter struct {
	RoleLevel *int
	Limit     int
	After     *cursor.Cursor
}

// Repository defines the interface for roster data access.
type Repository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	// List returns up to filter.Limit users ordered by (created_at, id)
	// descending, starting after filter.After.
	List(ctx context.Context, filter ListFilter) ([]domain.User, error)
}

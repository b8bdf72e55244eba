package actions

import (
	"context"
	"time"

	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/pkg/cursor"
)

// ListFilter narrows an action listing. Deleted actions are excluded unless
// IncludeDeleted is set.
type ListFilter struct {
	Outcome        *domain.Outcome
	ParticipantID  string
	IncludeDeleted bool
	Limit          int
	After          *cursor.Cursor
}

// Repository defines the interface for action data access.
type Repository interface {
	Create(ctx context.Context, action *domain.ActionRecord) error
	GetByID(ctx context.Context, id string) (*domain.ActionRecord, error)
	// SoftDelete marks the action deleted. It returns ErrActionNotFound for
	// unknown or already deleted actions.
	SoftDelete(ctx context.Context, id, deletedBy string, at time.Time) error
	List(ctx context.Context, filter ListFilter) ([]domain.ActionRecord, error)
}

// ParticipantResolver maps user ids to display names and reports unknown ids.
type ParticipantResolver interface {
	Names(ctx context.Context, ids []string) (names []string, missing []string, err error)
}

package goals

import (
	"context"
	"time"

	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/pkg/cursor"
)

// ListFilter narrows a goal listing. Zero values match everything.
type ListFilter struct {
	Week   *domain.Week
	UserID string
	Limit  int
	After  *cursor.Cursor
}

// Proof is the stored receipt reference of a goal.
type Proof struct {
	URL       string
	Key       string
	ExpiresAt time.Time
}

// Repository defines the interface for weekly goal data access.
type Repository interface {
	Create(ctx context.Context, goal *domain.WeeklyGoal) error
	GetByID(ctx context.Context, id string) (*domain.WeeklyGoal, error)
	// GetLatest returns the most recently created goal of userID for week.
	GetLatest(ctx context.Context, userID string, week domain.Week) (*domain.WeeklyGoal, error)
	UpdateStatus(ctx context.Context, id string, status domain.GoalStatus) (*domain.WeeklyGoal, error)
	SetProof(ctx context.Context, id string, proof Proof) (*domain.WeeklyGoal, error)
	// List returns up to filter.Limit goals ordered by (created_at, id)
	// descending, starting after filter.After.
	List(ctx context.Context, filter ListFilter) ([]domain.WeeklyGoal, error)
}

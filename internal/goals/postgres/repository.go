// Package postgres provides PostgreSQL implementation of the goals repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/goals"
	"github.com/bissquit/guildhall/internal/pkg/cursor"
	pgutil "github.com/bissquit/guildhall/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const goalColumns = `id, user_id, week, status, proof_url, proof_key, proof_expires_at, created_at, updated_at`

// Repository implements goals.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a goal and fills its generated fields.
func (r *Repository) Create(ctx context.Context, goal *domain.WeeklyGoal) error {
	if !pgutil.ValidID(goal.UserID) {
		return goals.ErrUserNotFound
	}

	query := `
		INSERT INTO weekly_goals (user_id, week, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, goal.UserID, goal.Week, goal.Status).
		Scan(&goal.ID, &goal.CreatedAt, &goal.UpdatedAt)
	if err != nil {
		if pgutil.IsForeignKeyViolation(err) {
			return goals.ErrUserNotFound
		}
		return fmt.Errorf("create goal: %w", err)
	}
	return nil
}

// GetByID retrieves a goal by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.WeeklyGoal, error) {
	if !pgutil.ValidID(id) {
		return nil, goals.ErrGoalNotFound
	}

	query := `SELECT ` + goalColumns + ` FROM weekly_goals WHERE id = $1`
	return r.getOne(ctx, query, "get goal", id)
}

// GetLatest retrieves the newest goal of a user for a week.
func (r *Repository) GetLatest(ctx context.Context, userID string, week domain.Week) (*domain.WeeklyGoal, error) {
	if !pgutil.ValidID(userID) {
		return nil, goals.ErrGoalNotFound
	}

	query := `
		SELECT ` + goalColumns + `
		FROM weekly_goals
		WHERE user_id = $1 AND week = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, "get latest goal", userID, week)
}

// UpdateStatus changes the status of a goal.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.GoalStatus) (*domain.WeeklyGoal, error) {
	if !pgutil.ValidID(id) {
		return nil, goals.ErrGoalNotFound
	}

	query := `
		UPDATE weekly_goals
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + goalColumns
	return r.getOne(ctx, query, "update goal status", id, status)
}

// SetProof records the proof receipt of a goal.
func (r *Repository) SetProof(ctx context.Context, id string, proof goals.Proof) (*domain.WeeklyGoal, error) {
	if !pgutil.ValidID(id) {
		return nil, goals.ErrGoalNotFound
	}

	query := `
		UPDATE weekly_goals
		SET proof_url = $2, proof_key = $3, proof_expires_at = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + goalColumns
	return r.getOne(ctx, query, "set goal proof", id, proof.URL, proof.Key, proof.ExpiresAt)
}

// List returns goals newest first, after the cursor position if one is set.
func (r *Repository) List(ctx context.Context, filter goals.ListFilter) ([]domain.WeeklyGoal, error) {
	query := `SELECT ` + goalColumns + ` FROM weekly_goals WHERE 1=1`
	args := []any{}
	argNum := 1

	if filter.Week != nil {
		query += fmt.Sprintf(" AND week = $%d", argNum)
		args = append(args, *filter.Week)
		argNum++
	}

	if filter.UserID != "" {
		if !pgutil.ValidID(filter.UserID) {
			return nil, nil
		}
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filter.UserID)
		argNum++
	}

	if filter.After != nil {
		if !pgutil.ValidID(filter.After.ID) {
			return nil, cursor.ErrInvalid
		}
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argNum, argNum+1)
		args = append(args, filter.After.CreatedAt, filter.After.ID)
		argNum += 2
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argNum)
	args = append(args, filter.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var result []domain.WeeklyGoal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		result = append(result, *goal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	return result, nil
}

func (r *Repository) getOne(ctx context.Context, query, op string, args ...any) (*domain.WeeklyGoal, error) {
	goal, err := scanGoal(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, goals.ErrGoalNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return goal, nil
}

func scanGoal(row pgx.Row) (*domain.WeeklyGoal, error) {
	var g domain.WeeklyGoal
	err := row.Scan(
		&g.ID,
		&g.UserID,
		&g.Week,
		&g.Status,
		&g.ProofURL,
		&g.ProofKey,
		&g.ProofExpiresAt,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

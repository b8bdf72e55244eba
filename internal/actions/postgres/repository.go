// Package postgres provides PostgreSQL implementation of the actions repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/guildhall/internal/actions"
	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/pkg/cursor"
	pgutil "github.com/bissquit/guildhall/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const actionColumns = `id, name, outcome, amount, participants, created_by, created_at, deleted_at, deleted_by`

// Repository implements actions.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts an action and fills its generated fields.
func (r *Repository) Create(ctx context.Context, action *domain.ActionRecord) error {
	query := `
		INSERT INTO actions (name, outcome, amount, participants, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	participants := action.Participants
	if participants == nil {
		participants = []string{}
	}

	err := r.db.QueryRow(ctx, query,
		action.Name,
		action.Outcome,
		action.Amount,
		participants,
		action.CreatedBy,
	).Scan(&action.ID, &action.CreatedAt)

	if err != nil {
		return fmt.Errorf("create action: %w", err)
	}
	return nil
}

// GetByID retrieves an action, deleted or not.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.ActionRecord, error) {
	if !pgutil.ValidID(id) {
		return nil, actions.ErrActionNotFound
	}

	query := `SELECT ` + actionColumns + ` FROM actions WHERE id = $1`
	action, err := scanAction(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, actions.ErrActionNotFound
		}
		return nil, fmt.Errorf("get action: %w", err)
	}
	return action, nil
}

// SoftDelete marks an action deleted.
func (r *Repository) SoftDelete(ctx context.Context, id, deletedBy string, at time.Time) error {
	if !pgutil.ValidID(id) {
		return actions.ErrActionNotFound
	}

	query := `
		UPDATE actions
		SET deleted_at = $2, deleted_by = $3
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.Exec(ctx, query, id, at, deletedBy)
	if err != nil {
		return fmt.Errorf("soft delete action: %w", err)
	}
	if result.RowsAffected() == 0 {
		return actions.ErrActionNotFound
	}
	return nil
}

// List returns actions newest first, after the cursor position if one is set.
func (r *Repository) List(ctx context.Context, filter actions.ListFilter) ([]domain.ActionRecord, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE 1=1`
	args := []any{}
	argNum := 1

	if !filter.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}

	if filter.Outcome != nil {
		query += fmt.Sprintf(" AND outcome = $%d", argNum)
		args = append(args, *filter.Outcome)
		argNum++
	}

	if filter.ParticipantID != "" {
		query += fmt.Sprintf(" AND $%d = ANY(participants)", argNum)
		args = append(args, filter.ParticipantID)
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
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var result []domain.ActionRecord
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		result = append(result, *action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return result, nil
}

func scanAction(row pgx.Row) (*domain.ActionRecord, error) {
	var a domain.ActionRecord
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Outcome,
		&a.Amount,
		&a.Participants,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.DeletedAt,
		&a.DeletedBy,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

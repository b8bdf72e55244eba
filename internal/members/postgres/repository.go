// Package postgres provides PostgreSQL implementation of the members repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/members"
	"github.com/bissquit/guildhall/internal/pkg/cursor"
	pgutil "github.com/bissquit/guildhall/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, email, password_hash, role_level, discord, passport, pasta, locker, created_at, updated_at`

// Repository implements the members.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a user and fills its generated fields.
func (r *Repository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (name, email, password_hash, role_level, discord, passport, pasta, locker)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.RoleLevel,
		user.Discord,
		user.Passport,
		user.Pasta,
		user.Locker,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if pgutil.IsUniqueViolation(err) {
			return members.ErrEmailExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if !pgutil.ValidID(id) {
		return nil, members.ErrUserNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, members.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// GetByIDs retrieves the users that exist among ids.
func (r *Repository) GetByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1::uuid[])`

	rows, err := r.db.Query(ctx, query, pgutil.ValidIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// Update stores the profile fields of user.
func (r *Repository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET name = $2, email = $3, role_level = $4, discord = $5, passport = $6,
			pasta = $7, locker = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.RoleLevel,
		user.Discord,
		user.Passport,
		user.Pasta,
		user.Locker,
	).Scan(&user.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return members.ErrUserNotFound
		}
		if pgutil.IsUniqueViolation(err) {
			return members.ErrEmailExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// UpdatePassword replaces the password hash of a user.
func (r *Repository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if !pgutil.ValidID(id) {
		return members.ErrUserNotFound
	}
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return members.ErrUserNotFound
	}
	return nil
}

// Delete removes a user.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if !pgutil.ValidID(id) {
		return members.ErrUserNotFound
	}
	result, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return members.ErrUserNotFound
	}
	return nil
}

// List returns users newest first, after the cursor position if one is set.
func (r *Repository) List(ctx context.Context, filter members.ListFilter) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	args := []any{}
	argNum := 1

	if filter.RoleLevel != nil {
		query += fmt.Sprintf(" AND role_level = $%d", argNum)
		args = append(args, *filter.RoleLevel)
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
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]domain.User, error) {
	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.RoleLevel,
		&u.Discord,
		&u.Passport,
		&u.Pasta,
		&u.Locker,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

package testutil

import (
	"context"
	"fmt"
	"time"

	pgutil "github.com/bissquit/guildhall/internal/pkg/postgres"
	"github.com/bissquit/guildhall/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a postgres testcontainer.
type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnectionString string
}

// NewPostgresContainer creates a new PostgreSQL container for testing.
func NewPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		ConnectionString:  connStr,
	}, nil
}

// NewMigratedPostgres starts a PostgreSQL container and applies the schema
// migrations to it.
func NewMigratedPostgres(ctx context.Context) (*PostgresContainer, error) {
	container, err := NewPostgresContainer(ctx)
	if err != nil {
		return nil, err
	}

	migrator, err := pgutil.NewMigrator(migrations.FS, container.ConnectionString)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	defer func() { _ = migrator.Close() }()

	if err := migrator.Up(); err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	return container, nil
}

// NewPool opens a connection pool to the container.
func (c *PostgresContainer) NewPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, c.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return pool, nil
}

// RandomEmail returns a unique address for fixtures that must not collide.
func RandomEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@guild.test", prefix, uuid.NewString()[:8])
}

//go:build integration

package postgres

import (
	"context"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/members"
	"github.com/bissquit/guildhall/internal/pkg/cursor"
	"github.com/bissquit/guildhall/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	pg, err := testutil.NewMigratedPostgres(ctx)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}

	testDB, err = pg.NewPool(ctx)
	if err != nil {
		log.Fatalf("open pool: %v", err)
	}

	code := m.Run()

	testDB.Close()
	if err := pg.Terminate(ctx); err != nil {
		log.Printf("terminate postgres: %v", err)
	}
	os.Exit(code)
}

func createUser(t *testing.T, repo *Repository, name string, level int) *domain.User {
	t.Helper()
	user := &domain.User{
		Name:         name,
		Email:        testutil.RandomEmail("member"),
		PasswordHash: "hash",
		RoleLevel:    level,
		Pasta:        "Norte",
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testDB)

	user := createUser(t, repo, "Ana", 4)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, 4, got.RoleLevel)
	assert.Equal(t, "Norte", got.Pasta)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = repo.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, members.ErrUserNotFound)

	_, err = repo.GetByID(ctx, "8b8e6c6e-6f44-4bd6-9d57-3d8ac9b0f001")
	assert.ErrorIs(t, err, members.ErrUserNotFound)
}

func TestRepository_EmailUniqueIgnoresCase(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testDB)

	user := createUser(t, repo, "Bruno", 6)

	dup := &domain.User{Name: "Outro", Email: strings.ToUpper(user.Email), PasswordHash: "x", RoleLevel: 6}
	err := repo.Create(ctx, dup)
	assert.ErrorIs(t, err, members.ErrEmailExists)
}

func TestRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testDB)

	user := createUser(t, repo, "Carla", 6)
	other := createUser(t, repo, "Davi", 6)
	before := user.UpdatedAt

	time.Sleep(10 * time.Millisecond)
	user.Name = "Carla Souza"
	user.RoleLevel = 3
	user.Locker = "A-12"
	require.NoError(t, repo.Update(ctx, user))
	assert.True(t, user.UpdatedAt.After(before))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Carla Souza", got.Name)
	assert.Equal(t, 3, got.RoleLevel)
	assert.Equal(t, "A-12", got.Locker)

	user.Email = other.Email
	assert.ErrorIs(t, repo.Update(ctx, user), members.ErrEmailExists)

	missing := &domain.User{ID: "8b8e6c6e-6f44-4bd6-9d57-3d8ac9b0f002", Name: "x", Email: testutil.RandomEmail("x")}
	assert.ErrorIs(t, repo.Update(ctx, missing), members.ErrUserNotFound)
}

func TestRepository_UpdatePasswordAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testDB)

	user := createUser(t, repo, "Eva", 6)

	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "new-hash"))
	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)

	require.NoError(t, repo.Delete(ctx, user.ID))
	assert.ErrorIs(t, repo.Delete(ctx, user.ID), members.ErrUserNotFound)
	assert.ErrorIs(t, repo.UpdatePassword(ctx, user.ID, "x"), members.ErrUserNotFound)
}

func TestRepository_GetByIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testDB)

	a := createUser(t, repo, "Fabio", 6)
	b := createUser(t, repo, "Gabi", 6)

	users, err := repo.GetByIDs(ctx, []string{a.ID, "garbage", b.ID, "8b8e6c6e-6f44-4bd6-9d57-3d8ac9b0f003"})
	require.NoError(t, err)

	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Name)
	}
	assert.ElementsMatch(t, []string{"Fabio", "Gabi"}, names)
}

func TestRepository_ListPaging(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testDB)

	level := 5
	for _, name := range []string{"M1", "M2", "M3"} {
		createUser(t, repo, name, level)
	}

	first, err := repo.List(ctx, members.ListFilter{RoleLevel: &level, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	for _, u := range first {
		assert.Equal(t, level, u.RoleLevel)
	}

	last := first[len(first)-1]
	rest, err := repo.List(ctx, members.ListFilter{
		RoleLevel: &level,
		Limit:     10,
		After:     &cursor.Cursor{CreatedAt: last.CreatedAt, ID: last.ID},
	})
	require.NoError(t, err)
	for _, u := range rest {
		assert.NotEqual(t, first[0].ID, u.ID)
		assert.NotEqual(t, first[1].ID, u.ID)
	}
	assert.GreaterOrEqual(t, len(rest), 1)

	_, err = repo.List(ctx, members.ListFilter{Limit: 1, After: &cursor.Cursor{CreatedAt: time.Now(), ID: "forged"}})
	assert.ErrorIs(t, err, cursor.ErrInvalid)
}

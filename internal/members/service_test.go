package members

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/bissquit/guildhall/internal/authz"
	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/identity"
	"github.com/bissquit/guildhall/internal/notifications"
	"github.com/bissquit/guildhall/internal/pkg/cursor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	users     map[string]*domain.User
	nextID    int
	createErr error
	deleted   []string
	passwords map[string]string
}

func newMockRepository(users ...*domain.User) *mockRepository {
	m := &mockRepository{
		users:     make(map[string]*domain.User),
		passwords: make(map[string]string),
	}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockRepository) Create(_ context.Context, user *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrEmailExists
		}
	}
	m.nextID++
	user.ID = fmt.Sprintf("new-%d", m.nextID)
	user.CreatedAt = time.Now()
	m.users[user.ID] = user
	return nil
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepository) GetByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	var out []domain.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockRepository) Update(_ context.Context, user *domain.User) error {
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockRepository) UpdatePassword(_ context.Context, id, hash string) error {
	m.passwords[id] = hash
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.users, id)
	return nil
}

func (m *mockRepository) List(_ context.Context, filter ListFilter) ([]domain.User, error) {
	var out []domain.User
	for _, u := range m.users {
		if filter.RoleLevel != nil && u.RoleLevel != *filter.RoleLevel {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// mockAnnouncer implements notifications.Announcer for testing.
type mockAnnouncer struct {
	calls    int
	event    notifications.Event
	personal notifications.Event
	pasta    string
	report   notifications.Report
}

func (m *mockAnnouncer) Announce(_ context.Context, event, personal notifications.Event, pasta string) notifications.Report {
	m.calls++
	m.event = event
	m.personal = personal
	m.pasta = pasta
	return m.report
}

func user(id string, level int) *domain.User {
	return &domain.User{ID: id, Name: "User " + id, Email: id + "@example.com", RoleLevel: level}
}

func actor(id string, level int) authz.Actor {
	return authz.Actor{UserID: id, Name: "Actor " + id, Level: level}
}

func newTestService(repo Repository, announcer notifications.Announcer) *Service {
	return NewService(repo, authz.NewGate(authz.DefaultPolicy()), announcer)
}

func TestCreate_AnnouncesWithPasswordOnlyToPersonal(t *testing.T) {
	repo := newMockRepository()
	announcer := &mockAnnouncer{}
	service := newTestService(repo, announcer)

	created, err := service.Create(context.Background(), actor("a", 1), CreateInput{
		Name:      " Bruno ",
		Email:     "Bruno@Example.com",
		Password:  "s3nha-inicial",
		RoleLevel: 6,
		Pasta:     "https://discord.com/api/webhooks/1/x",
	})

	require.NoError(t, err)
	assert.Equal(t, "Bruno", created.Name)
	assert.Equal(t, "bruno@example.com", created.Email)
	ok, err := identity.CheckPassword(created.PasswordHash, "s3nha-inicial")
	require.NoError(t, err)
	assert.True(t, ok)

	require.Equal(t, 1, announcer.calls)
	general, isCreated := announcer.event.(notifications.UserCreated)
	require.True(t, isCreated)
	assert.Empty(t, general.Password)
	assert.Equal(t, "Actor a", general.Actor)

	personal, isCreated := announcer.personal.(notifications.UserCreated)
	require.True(t, isCreated)
	assert.Equal(t, "s3nha-inicial", personal.Password)
	assert.Equal(t, "https://discord.com/api/webhooks/1/x", announcer.pasta)
}

func TestCreate_Authorization(t *testing.T) {
	tests := []struct {
		name     string
		actor    int
		newLevel int
		wantErr  error
	}{
		{"admin geral creates admin", 1, 2, nil},
		{"admin creates soldado", 2, 6, nil},
		{"admin cannot create admin geral", 2, 1, authz.ErrForbidden},
		{"gerente de acao cannot create", 3, 6, authz.ErrForbidden},
		{"soldado cannot create", 6, 6, authz.ErrForbidden},
		{"invalid level", 1, 0, ErrInvalidRoleLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			announcer := &mockAnnouncer{}
			service := newTestService(repo, announcer)

			_, err := service.Create(context.Background(), actor("a", tt.actor), CreateInput{
				Name: "Bruno", Email: "bruno@example.com", Password: "123456", RoleLevel: tt.newLevel,
			})

			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Len(t, repo.users, 1)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, repo.users)
			assert.Zero(t, announcer.calls)
		})
	}
}

func TestCreate_StorageErrorIsNotAnnounced(t *testing.T) {
	repo := newMockRepository()
	repo.createErr = errors.New("connection reset")
	announcer := &mockAnnouncer{}
	service := newTestService(repo, announcer)

	_, err := service.Create(context.Background(), actor("a", 1), CreateInput{
		Name: "Bruno", Email: "bruno@example.com", Password: "123456", RoleLevel: 6,
	})

	require.Error(t, err)
	assert.Zero(t, announcer.calls)
}

func TestCreate_NotificationFailureDoesNotFail(t *testing.T) {
	announcer := &mockAnnouncer{report: notifications.Report{
		General: notifications.ChannelReport{Result: notifications.DispatchResult{{Endpoint: "x", Error: "boom"}}},
	}}
	service := newTestService(newMockRepository(), announcer)

	created, err := service.Create(context.Background(), actor("a", 1), CreateInput{
		Name: "Bruno", Email: "bruno@example.com", Password: "123456", RoleLevel: 6,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

func TestCreate_NilAnnouncer(t *testing.T) {
	service := newTestService(newMockRepository(), nil)

	_, err := service.Create(context.Background(), actor("a", 1), CreateInput{
		Name: "Bruno", Email: "bruno@example.com", Password: "123456", RoleLevel: 6,
	})

	require.NoError(t, err)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	service := newTestService(newMockRepository(user("b", 6)), nil)

	_, err := service.Create(context.Background(), actor("a", 1), CreateInput{
		Name: "Bruno", Email: "b@example.com", Password: "123456", RoleLevel: 6,
	})

	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUpdate_ComputesChanges(t *testing.T) {
	repo := newMockRepository(user("b", 6))
	announcer := &mockAnnouncer{}
	service := newTestService(repo, announcer)

	discord := "bruno#1"
	level := 4
	sameName := "User b"
	updated, err := service.Update(context.Background(), actor("a", 2), "b", UpdateInput{
		Name:      &sameName,
		Discord:   &discord,
		RoleLevel: &level,
	})

	require.NoError(t, err)
	assert.Equal(t, 4, updated.RoleLevel)
	assert.Equal(t, 4, repo.users["b"].RoleLevel)

	require.Equal(t, 1, announcer.calls)
	edited, ok := announcer.event.(notifications.UserEdited)
	require.True(t, ok)
	assert.Nil(t, announcer.personal)
	assert.ElementsMatch(t, []notifications.FieldChange{
		{Field: "cargo", From: "Soldado (6)", To: "Gerente de Vendas (4)"},
		{Field: "discord", From: "", To: "bruno#1"},
	}, edited.Changes)
}

func TestUpdate_NoChangesNoAnnouncement(t *testing.T) {
	repo := newMockRepository(user("b", 6))
	announcer := &mockAnnouncer{}
	service := newTestService(repo, announcer)

	email := "B@example.com"
	_, err := service.Update(context.Background(), actor("a", 1), "b", UpdateInput{Email: &email})

	require.NoError(t, err)
	assert.Zero(t, announcer.calls)
}

func TestUpdate_MasksPastaInChanges(t *testing.T) {
	repo := newMockRepository(user("b", 6))
	announcer := &mockAnnouncer{}
	service := newTestService(repo, announcer)

	pasta := "https://discord.com/api/webhooks/123456789/very-secret-token"
	_, err := service.Update(context.Background(), actor("a", 1), "b", UpdateInput{Pasta: &pasta})

	require.NoError(t, err)
	edited := announcer.event.(notifications.UserEdited)
	require.Len(t, edited.Changes, 1)
	assert.NotContains(t, edited.Changes[0].To, "very-secret")
}

func TestUpdate_Authorization(t *testing.T) {
	tests := []struct {
		name     string
		actor    int
		target   int
		newLevel *int
		wantErr  error
	}{
		{"admin edits soldado", 2, 6, nil, nil},
		{"admin cannot edit admin geral", 2, 1, nil, authz.ErrForbidden},
		{"admin cannot promote to admin geral", 2, 6, intPtr(1), authz.ErrForbidden},
		{"gerente cannot edit users", 3, 6, nil, authz.ErrForbidden},
		{"admin geral promotes to admin", 1, 6, intPtr(2), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository(user("b", tt.target))
			service := newTestService(repo, nil)

			name := "Novo Nome"
			_, err := service.Update(context.Background(), actor("a", tt.actor), "b", UpdateInput{Name: &name, RoleLevel: tt.newLevel})

			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, "User b", repo.users["b"].Name)
		})
	}
}

func TestUpdate_DemotingPeerAdminIsReserved(t *testing.T) {
	repo := newMockRepository(user("peer", 2))
	service := newTestService(repo, nil)
	admin := actor("a", 2)
	soldado := domain.LevelSoldado

	_, err := service.Update(context.Background(), admin, "peer", UpdateInput{RoleLevel: &soldado})
	require.ErrorIs(t, err, authz.ErrForbidden)
	assert.Equal(t, 2, repo.users["peer"].RoleLevel)

	t.Run("reset after attempted demotion", func(t *testing.T) {
		err := service.ResetPassword(context.Background(), admin, "peer", "tomada")
		assert.ErrorIs(t, err, authz.ErrForbidden)
		assert.Empty(t, repo.passwords)
	})

	t.Run("delete after attempted demotion", func(t *testing.T) {
		err := service.Delete(context.Background(), admin, "peer")
		assert.ErrorIs(t, err, authz.ErrForbidden)
		assert.Empty(t, repo.deleted)
	})

	t.Run("admin geral may demote", func(t *testing.T) {
		_, err := service.Update(context.Background(), actor("g", 1), "peer", UpdateInput{RoleLevel: &soldado})
		require.NoError(t, err)
		assert.Equal(t, soldado, repo.users["peer"].RoleLevel)
	})
}

func TestUpdate_AdminTierMovesWithinAdminTiers(t *testing.T) {
	repo := newMockRepository(user("peer", 2))
	service := newTestService(repo, nil)

	name := "Renomeado"
	_, err := service.Update(context.Background(), actor("a", 2), "peer", UpdateInput{Name: &name})
	assert.NoError(t, err, "editing a peer admin without demoting stays allowed")

	gerente := 3
	_, err = service.Update(context.Background(), actor("a", 2), "peer", UpdateInput{RoleLevel: &gerente})
	assert.ErrorIs(t, err, authz.ErrForbidden)
}

func TestDelete(t *testing.T) {
	repo := newMockRepository(user("b", 6))
	announcer := &mockAnnouncer{}
	service := newTestService(repo, announcer)

	err := service.Delete(context.Background(), actor("a", 2), "b")

	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, repo.deleted)
	deleted, ok := announcer.event.(notifications.UserDeleted)
	require.True(t, ok)
	assert.Equal(t, "User b", deleted.User.Name)
}

func TestDelete_HigherRankedTargetDenied(t *testing.T) {
	repo := newMockRepository(user("b", 2))
	announcer := &mockAnnouncer{}
	service := newTestService(repo, announcer)

	err := service.Delete(context.Background(), actor("a", 3), "b")
	assert.ErrorIs(t, err, authz.ErrForbidden)

	err = service.Delete(context.Background(), actor("c", 2), "b")
	assert.ErrorIs(t, err, authz.ErrForbidden, "deleting another admin is reserved for admin geral")

	err = service.Delete(context.Background(), actor("a", 1), "b")
	assert.NoError(t, err)
	assert.Equal(t, 1, announcer.calls)
}

func TestDelete_Self(t *testing.T) {
	service := newTestService(newMockRepository(user("a", 1)), nil)

	err := service.Delete(context.Background(), actor("a", 1), "a")
	assert.ErrorIs(t, err, ErrCannotDeleteSelf)
}

func TestDelete_NotFound(t *testing.T) {
	service := newTestService(newMockRepository(), nil)

	err := service.Delete(context.Background(), actor("a", 1), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestResetPassword(t *testing.T) {
	repo := newMockRepository(user("b", 6), user("c", 2))
	service := newTestService(repo, nil)

	require.NoError(t, service.ResetPassword(context.Background(), actor("a", 2), "b", "nova-senha"))
	ok, err := identity.CheckPassword(repo.passwords["b"], "nova-senha")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, service.ResetPassword(context.Background(), actor("b", 6), "b", "minha-senha"), "self reset")
	assert.ErrorIs(t, service.ResetPassword(context.Background(), actor("d", 6), "b", "x"), authz.ErrForbidden)
	assert.ErrorIs(t, service.ResetPassword(context.Background(), actor("e", 2), "c", "x"), authz.ErrForbidden)
}

func TestGet(t *testing.T) {
	service := newTestService(newMockRepository(user("a", 6), user("b", 6)), nil)

	got, err := service.Get(context.Background(), actor("a", 6), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	_, err = service.Get(context.Background(), actor("a", 6), "b")
	assert.ErrorIs(t, err, authz.ErrForbidden)

	got, err = service.Get(context.Background(), actor("m", 5), "b")
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)
}

func TestList(t *testing.T) {
	repo := newMockRepository(user("a", 6), user("b", 6), user("c", 3))
	service := newTestService(repo, nil)

	page, err := service.List(context.Background(), actor("m", 3), ListInput{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.NextCursor)

	level := 3
	page, err = service.List(context.Background(), actor("m", 3), ListInput{RoleLevel: &level})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Empty(t, page.NextCursor)

	_, err = service.List(context.Background(), actor("s", 6), ListInput{})
	assert.ErrorIs(t, err, authz.ErrForbidden)

	_, err = service.List(context.Background(), actor("m", 3), ListInput{Cursor: "%%%"})
	assert.ErrorIs(t, err, cursor.ErrInvalid)
}

func TestNames(t *testing.T) {
	service := newTestService(newMockRepository(user("a", 6), user("b", 6)), nil)

	names, missing, err := service.Names(context.Background(), []string{"b", "x", "a"})

	require.NoError(t, err)
	assert.Equal(t, []string{"User b", "User a"}, names)
	assert.Equal(t, []string{"x"}, missing)
}

func intPtr(v int) *int { return &v }

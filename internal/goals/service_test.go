package goals

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bissquit/guildhall/internal/authz"
	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/proofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	goals map[string]*domain.WeeklyGoal
	order []string
	users map[string]bool
	clock time.Time
}

func newMockRepository(users ...string) *mockRepository {
	m := &mockRepository{
		goals: make(map[string]*domain.WeeklyGoal),
		users: make(map[string]bool),
		clock: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, u := range users {
		m.users[u] = true
	}
	return m
}

func (m *mockRepository) Create(_ context.Context, g *domain.WeeklyGoal) error {
	if !m.users[g.UserID] {
		return ErrUserNotFound
	}
	m.clock = m.clock.Add(time.Minute)
	g.ID = fmt.Sprintf("goal-%d", len(m.goals)+1)
	g.CreatedAt = m.clock
	g.UpdatedAt = m.clock
	cp := *g
	m.goals[g.ID] = &cp
	m.order = append(m.order, g.ID)
	return nil
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*domain.WeeklyGoal, error) {
	g, ok := m.goals[id]
	if !ok {
		return nil, ErrGoalNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *mockRepository) GetLatest(_ context.Context, userID string, week domain.Week) (*domain.WeeklyGoal, error) {
	for i := len(m.order) - 1; i >= 0; i-- {
		g := m.goals[m.order[i]]
		if g.UserID == userID && g.Week == week {
			cp := *g
			return &cp, nil
		}
	}
	return nil, ErrGoalNotFound
}

func (m *mockRepository) UpdateStatus(_ context.Context, id string, status domain.GoalStatus) (*domain.WeeklyGoal, error) {
	g, ok := m.goals[id]
	if !ok {
		return nil, ErrGoalNotFound
	}
	g.Status = status
	cp := *g
	return &cp, nil
}

func (m *mockRepository) SetProof(_ context.Context, id string, proof Proof) (*domain.WeeklyGoal, error) {
	g, ok := m.goals[id]
	if !ok {
		return nil, ErrGoalNotFound
	}
	g.ProofURL = proof.URL
	g.ProofKey = proof.Key
	expires := proof.ExpiresAt
	g.ProofExpiresAt = &expires
	cp := *g
	return &cp, nil
}

func (m *mockRepository) List(_ context.Context, filter ListFilter) ([]domain.WeeklyGoal, error) {
	var out []domain.WeeklyGoal
	for i := len(m.order) - 1; i >= 0; i-- {
		g := m.goals[m.order[i]]
		if filter.Week != nil && g.Week != *filter.Week {
			continue
		}
		if filter.UserID != "" && g.UserID != filter.UserID {
			continue
		}
		if filter.After != nil && !g.CreatedAt.Before(filter.After.CreatedAt) {
			continue
		}
		out = append(out, *g)
	}
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// mockBlobStore implements proofs.BlobStore for testing.
type mockBlobStore struct {
	keys []string
	err  error
}

func (m *mockBlobStore) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.keys = append(m.keys, key)
	return "https://blob.example.com/" + key, nil
}

func newTestService(repo Repository, store proofs.BlobStore) *Service {
	gateway := proofs.NewGateway(store, proofs.Config{MaxUploadBytes: 1024})
	return NewService(repo, authz.NewGate(authz.DefaultPolicy()), gateway)
}

func actor(id string, level int) authz.Actor {
	return authz.Actor{UserID: id, Name: "Actor " + id, Level: level}
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestCurrentWeek(t *testing.T) {
	assert.Equal(t, domain.Week("2026-W42"), CurrentWeek(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, domain.Week("2026-W53"), CurrentWeek(time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC)))

	service := newTestService(newMockRepository(), nil)
	service.now = func() time.Time { return time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) }
	assert.Equal(t, domain.Week("2026-W02"), service.CurrentWeek())
}

func TestSet_CreatesThenUpdates(t *testing.T) {
	repo := newMockRepository("u-1")
	service := newTestService(repo, nil)

	goal, err := service.Set(context.Background(), actor("m", 5), "u-1", "2026-W42", domain.GoalStatusNotPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.GoalStatusNotPaid, goal.Status)
	assert.Equal(t, domain.Week("2026-W42"), goal.Week)

	updated, err := service.Set(context.Background(), actor("m", 5), "u-1", "2026-W42", domain.GoalStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, goal.ID, updated.ID)
	assert.Equal(t, domain.GoalStatusConfirmed, updated.Status)
	assert.Len(t, repo.goals, 1)

	other, err := service.Set(context.Background(), actor("m", 5), "u-1", "2026-W43", domain.GoalStatusFreeGoal)
	require.NoError(t, err)
	assert.NotEqual(t, goal.ID, other.ID)
	assert.Len(t, repo.goals, 2)
}

func TestSet_Errors(t *testing.T) {
	tests := []struct {
		name    string
		level   int
		userID  string
		week    string
		status  domain.GoalStatus
		wantErr error
	}{
		{"gerente de ação forbidden", 3, "u-1", "2026-W42", domain.GoalStatusConfirmed, authz.ErrForbidden},
		{"soldado forbidden", 6, "u-1", "2026-W42", domain.GoalStatusConfirmed, authz.ErrForbidden},
		{"bad week format", 5, "u-1", "2026-42", domain.GoalStatusConfirmed, ErrInvalidWeek},
		{"week out of range", 5, "u-1", "2026-W54", domain.GoalStatusConfirmed, ErrInvalidWeek},
		{"bad status", 5, "u-1", "2026-W42", "paid", ErrInvalidStatus},
		{"unknown user", 5, "ghost", "2026-W42", domain.GoalStatusConfirmed, ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newTestService(newMockRepository("u-1"), nil)

			_, err := service.Set(context.Background(), actor("m", tt.level), tt.userID, tt.week, tt.status)

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestListByWeek_ScopesWithoutViewAll(t *testing.T) {
	repo := newMockRepository("u-1", "u-2")
	service := newTestService(repo, nil)

	for _, u := range []string{"u-1", "u-2"} {
		_, err := service.Set(context.Background(), actor("m", 1), u, "2026-W42", domain.GoalStatusNotPaid)
		require.NoError(t, err)
	}
	_, err := service.Set(context.Background(), actor("m", 1), "u-1", "2026-W41", domain.GoalStatusNotPaid)
	require.NoError(t, err)

	page, err := service.ListByWeek(context.Background(), actor("m", 5), "2026-W42", ListInput{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	page, err = service.ListByWeek(context.Background(), actor("u-2", 6), "2026-W42", ListInput{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "u-2", page.Items[0].UserID)

	_, err = service.ListByWeek(context.Background(), actor("m", 5), "W42", ListInput{})
	assert.ErrorIs(t, err, ErrInvalidWeek)
}

func TestListForUser(t *testing.T) {
	repo := newMockRepository("u-1")
	service := newTestService(repo, nil)

	for _, w := range []string{"2026-W40", "2026-W41", "2026-W42"} {
		_, err := service.Set(context.Background(), actor("m", 1), "u-1", w, domain.GoalStatusConfirmed)
		require.NoError(t, err)
	}

	page, err := service.ListForUser(context.Background(), actor("u-1", 6), "u-1", ListInput{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, domain.Week("2026-W42"), page.Items[0].Week)
	require.NotEmpty(t, page.NextCursor)

	page, err = service.ListForUser(context.Background(), actor("u-1", 6), "u-1", ListInput{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, domain.Week("2026-W40"), page.Items[0].Week)
	assert.Empty(t, page.NextCursor)

	_, err = service.ListForUser(context.Background(), actor("u-2", 6), "u-1", ListInput{})
	assert.ErrorIs(t, err, authz.ErrForbidden)

	_, err = service.ListForUser(context.Background(), actor("u-2", 4), "u-1", ListInput{})
	assert.NoError(t, err)
}

func TestAttachProof(t *testing.T) {
	repo := newMockRepository("u-1")
	store := &mockBlobStore{}
	service := newTestService(repo, store)

	goal, err := service.Set(context.Background(), actor("m", 5), "u-1", "2026-W42", domain.GoalStatusNotPaid)
	require.NoError(t, err)

	updated, err := service.AttachProof(context.Background(), actor("u-1", 6), goal.ID, Upload{
		Data:     pngHeader,
		FileName: "comprovante.png",
	})
	require.NoError(t, err)

	require.Len(t, store.keys, 1)
	assert.Contains(t, store.keys[0], "proofs/u-1/"+goal.ID+"/")
	assert.Equal(t, "https://blob.example.com/"+store.keys[0], updated.ProofURL)
	assert.Equal(t, store.keys[0], updated.ProofKey)
	require.NotNil(t, updated.ProofExpiresAt)
	assert.WithinDuration(t, time.Now().Add(proofs.DefaultTTL), *updated.ProofExpiresAt, time.Minute)
}

func TestAttachProof_Errors(t *testing.T) {
	tests := []struct {
		name    string
		store   proofs.BlobStore
		actor   authz.Actor
		goalID  string
		data    []byte
		wantErr error
	}{
		{"not configured", nil, actor("u-1", 6), "goal-1", pngHeader, proofs.ErrNotConfigured},
		{"other soldado", &mockBlobStore{}, actor("u-2", 6), "goal-1", pngHeader, authz.ErrForbidden},
		{"missing goal", &mockBlobStore{}, actor("u-1", 6), "goal-9", pngHeader, ErrGoalNotFound},
		{"empty file", &mockBlobStore{}, actor("u-1", 6), "goal-1", nil, proofs.ErrEmptyFile},
		{"too large", &mockBlobStore{}, actor("u-1", 6), "goal-1", make([]byte, 2048), proofs.ErrTooLarge},
		{"blob failure", &mockBlobStore{err: errors.New("boom")}, actor("m", 5), "goal-1", pngHeader, proofs.ErrUploadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository("u-1")
			service := newTestService(repo, tt.store)
			_, err := service.Set(context.Background(), actor("m", 5), "u-1", "2026-W42", domain.GoalStatusNotPaid)
			require.NoError(t, err)

			_, err = service.AttachProof(context.Background(), tt.actor, tt.goalID, Upload{Data: tt.data, FileName: "a.png"})

			assert.ErrorIs(t, err, tt.wantErr)
			if g, ok := repo.goals["goal-1"]; ok {
				assert.Empty(t, g.ProofURL)
			}
		})
	}
}

func TestGet_Visibility(t *testing.T) {
	repo := newMockRepository("u-1")
	service := newTestService(repo, nil)
	goal, err := service.Set(context.Background(), actor("m", 5), "u-1", "2026-W42", domain.GoalStatusNotPaid)
	require.NoError(t, err)

	_, err = service.Get(context.Background(), actor("u-1", 6), goal.ID)
	assert.NoError(t, err)

	_, err = service.Get(context.Background(), actor("u-2", 6), goal.ID)
	assert.ErrorIs(t, err, ErrGoalNotFound)
}

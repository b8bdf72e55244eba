// Package goals tracks weekly goal payments and their proof receipts.
package goals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/guildhall/internal/authz"
	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/pkg/ctxlog"
	"github.com/bissquit/guildhall/internal/pkg/cursor"
	"github.com/bissquit/guildhall/internal/pkg/metrics"
	"github.com/bissquit/guildhall/internal/proofs"
)

// ProofStore uploads proof files. Implemented by *proofs.Gateway.
type ProofStore interface {
	Store(ctx context.Context, ownerID, recordID string, data []byte, fileName, contentType string) (*proofs.StoredProof, error)
	MaxUploadBytes() int64
}

// Upload is a proof file received from a client.
type Upload struct {
	Data        []byte
	FileName    string
	ContentType string
}

// ListInput contains listing parameters.
type ListInput struct {
	Limit  int
	Cursor string
}

// Service implements weekly goal business logic.
type Service struct {
	repo   Repository
	gate   *authz.Gate
	proofs ProofStore
	now    func() time.Time
}

// NewService creates a new goals service.
func NewService(repo Repository, gate *authz.Gate, proofs ProofStore) *Service {
	return &Service{
		repo:   repo,
		gate:   gate,
		proofs: proofs,
		now:    time.Now,
	}
}

// CurrentWeek returns the ISO week containing now.
func CurrentWeek(now time.Time) domain.Week {
	return domain.WeekOf(now.UTC())
}

// CurrentWeek returns the ISO week of the service clock.
func (s *Service) CurrentWeek() domain.Week {
	return CurrentWeek(s.now())
}

// Set records the status of userID's goal for week. The newest record for
// the pair is updated; a record is created when none exists.
func (s *Service) Set(ctx context.Context, actor authz.Actor, userID, week string, status domain.GoalStatus) (*domain.WeeklyGoal, error) {
	if err := s.gate.Authorize(actor.Level, authz.OpManageGoals); err != nil {
		return nil, err
	}

	w, err := parseWeek(week)
	if err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	existing, err := s.repo.GetLatest(ctx, userID, w)
	switch {
	case errors.Is(err, ErrGoalNotFound):
		goal := &domain.WeeklyGoal{UserID: userID, Week: w, Status: status}
		if err := s.repo.Create(ctx, goal); err != nil {
			return nil, fmt.Errorf("create goal: %w", err)
		}
		metrics.RecordGoalStatus(string(goal.Status))
		ctxlog.FromContext(ctx).Info("goal created",
			"goal_id", goal.ID,
			"user_id", userID,
			"week", w,
			"status", status,
		)
		return goal, nil
	case err != nil:
		return nil, fmt.Errorf("get goal: %w", err)
	}

	if existing.Status == status {
		return existing, nil
	}

	goal, err := s.repo.UpdateStatus(ctx, existing.ID, status)
	if err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}
	metrics.RecordGoalStatus(string(goal.Status))
	ctxlog.FromContext(ctx).Info("goal status changed",
		"goal_id", goal.ID,
		"from", existing.Status,
		"to", status,
	)
	return goal, nil
}

// ListByWeek returns goals of one week. Without view_all only the actor's
// own goals are returned.
func (s *Service) ListByWeek(ctx context.Context, actor authz.Actor, week string, input ListInput) (cursor.Page[domain.WeeklyGoal], error) {
	w, err := parseWeek(week)
	if err != nil {
		return cursor.Page[domain.WeeklyGoal]{}, err
	}

	filter := ListFilter{Week: &w}
	if !s.gate.CanPerform(actor.Level, authz.OpViewAll) {
		filter.UserID = actor.UserID
	}
	return s.list(ctx, filter, input)
}

// ListForUser returns the goals of userID across weeks.
func (s *Service) ListForUser(ctx context.Context, actor authz.Actor, userID string, input ListInput) (cursor.Page[domain.WeeklyGoal], error) {
	if !actor.Is(userID) {
		if err := s.gate.Authorize(actor.Level, authz.OpViewAll); err != nil {
			return cursor.Page[domain.WeeklyGoal]{}, err
		}
	}
	return s.list(ctx, ListFilter{UserID: userID}, input)
}

// Get returns a goal visible to the actor.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id string) (*domain.WeeklyGoal, error) {
	goal, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	if !actor.Is(goal.UserID) && !s.gate.CanPerform(actor.Level, authz.OpViewAll) {
		return nil, ErrGoalNotFound
	}
	return goal, nil
}

// AttachProof uploads a receipt for a goal and records where it lives.
// The goal's owner and goal managers may attach proofs.
func (s *Service) AttachProof(ctx context.Context, actor authz.Actor, goalID string, upload Upload) (*domain.WeeklyGoal, error) {
	goal, err := s.repo.GetByID(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}

	if !actor.Is(goal.UserID) {
		if err := s.gate.Authorize(actor.Level, authz.OpManageGoals); err != nil {
			return nil, err
		}
	}

	stored, err := s.proofs.Store(ctx, goal.UserID, goal.ID, upload.Data, upload.FileName, upload.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store proof: %w", err)
	}

	updated, err := s.repo.SetProof(ctx, goal.ID, Proof{
		URL:       stored.URL,
		Key:       stored.Key,
		ExpiresAt: stored.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("save proof: %w", err)
	}

	ctxlog.FromContext(ctx).Info("goal proof attached",
		"goal_id", goal.ID,
		"key", stored.Key,
		"size", stored.Size,
	)
	return updated, nil
}

// MaxUploadBytes returns the proof size limit.
func (s *Service) MaxUploadBytes() int64 {
	return s.proofs.MaxUploadBytes()
}

func (s *Service) list(ctx context.Context, filter ListFilter, input ListInput) (cursor.Page[domain.WeeklyGoal], error) {
	after, err := cursor.Decode(input.Cursor)
	if err != nil {
		return cursor.Page[domain.WeeklyGoal]{}, err
	}
	filter.After = after

	limit := cursor.ClampLimit(input.Limit)
	filter.Limit = limit + 1

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return cursor.Page[domain.WeeklyGoal]{}, fmt.Errorf("list goals: %w", err)
	}
	return cursor.NewPage(items, limit, goalCursor), nil
}

func parseWeek(s string) (domain.Week, error) {
	w, err := domain.ParseWeek(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidWeek, err)
	}
	return w, nil
}

func goalCursor(g domain.WeeklyGoal) cursor.Cursor {
	return cursor.Cursor{CreatedAt: g.CreatedAt, ID: g.ID}
}

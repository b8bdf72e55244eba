// Package actions records ações and their outcomes.
package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/guildhall/internal/authz"
	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/notifications"
	"github.com/bissquit/guildhall/internal/pkg/ctxlog"
	"github.com/bissquit/guildhall/internal/pkg/cursor"
	"github.com/bissquit/guildhall/internal/pkg/metrics"
)

// Service implements action business logic.
type Service struct {
	repo      Repository
	resolver  ParticipantResolver
	gate      *authz.Gate
	announcer notifications.Announcer
}

// NewService creates a new actions service. announcer may be nil.
func NewService(repo Repository, resolver ParticipantResolver, gate *authz.Gate, announcer notifications.Announcer) *Service {
	return &Service{
		repo:      repo,
		resolver:  resolver,
		gate:      gate,
		announcer: announcer,
	}
}

// RecordInput contains data for recording an action.
type RecordInput struct {
	Name         string
	Outcome      domain.Outcome
	Amount       *float64
	Participants []string
}

// ListInput contains listing parameters.
type ListInput struct {
	Outcome        *domain.Outcome
	ParticipantID  string
	IncludeDeleted bool
	Limit          int
	Cursor         string
}

// Record stores a new action and announces it.
func (s *Service) Record(ctx context.Context, actor authz.Actor, input RecordInput) (*domain.ActionRecord, error) {
	if err := s.gate.Authorize(actor.Level, authz.OpRecordAction); err != nil {
		return nil, err
	}
	if err := validateOutcome(input.Outcome, input.Amount); err != nil {
		return nil, err
	}

	participants := dedupe(input.Participants)
	names, missing, err := s.resolver.Names(ctx, participants)
	if err != nil {
		return nil, fmt.Errorf("resolve participants: %w", err)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParticipants, strings.Join(missing, ", "))
	}

	action := &domain.ActionRecord{
		Name:         strings.TrimSpace(input.Name),
		Outcome:      input.Outcome,
		Amount:       input.Amount,
		Participants: participants,
		CreatedBy:    actor.UserID,
	}

	if err := s.repo.Create(ctx, action); err != nil {
		return nil, fmt.Errorf("create action: %w", err)
	}
	metrics.RecordAction(string(action.Outcome))

	s.announce(ctx, notifications.ActionRegistered{
		Meta:   notifications.NewMeta(actor.Name),
		Action: notifications.ActionInfoFrom(action, names),
	})

	return action, nil
}

// Get returns an action. Without view_all only actions the actor took part
// in are visible, and deleted ones are hidden.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id string) (*domain.ActionRecord, error) {
	action, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get action: %w", err)
	}

	if !s.gate.CanPerform(actor.Level, authz.OpViewAll) {
		if action.IsDeleted() || !action.HasParticipant(actor.UserID) {
			return nil, ErrActionNotFound
		}
	}
	return action, nil
}

// List returns one page of actions, newest first.
func (s *Service) List(ctx context.Context, actor authz.Actor, input ListInput) (cursor.Page[domain.ActionRecord], error) {
	after, err := cursor.Decode(input.Cursor)
	if err != nil {
		return cursor.Page[domain.ActionRecord]{}, err
	}
	if input.Outcome != nil && !input.Outcome.IsValid() {
		return cursor.Page[domain.ActionRecord]{}, ErrInvalidOutcome
	}

	filter := ListFilter{
		Outcome:        input.Outcome,
		ParticipantID:  input.ParticipantID,
		IncludeDeleted: input.IncludeDeleted,
		After:          after,
	}
	if !s.gate.CanPerform(actor.Level, authz.OpViewAll) {
		filter.ParticipantID = actor.UserID
		filter.IncludeDeleted = false
	}

	limit := cursor.ClampLimit(input.Limit)
	filter.Limit = limit + 1

	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return cursor.Page[domain.ActionRecord]{}, fmt.Errorf("list actions: %w", err)
	}

	return cursor.NewPage(records, limit, actionCursor), nil
}

// Delete soft-deletes an action, recording who deleted it.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id string) error {
	if err := s.gate.Authorize(actor.Level, authz.OpDeleteAction); err != nil {
		return err
	}

	action, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get action: %w", err)
	}
	if action.IsDeleted() {
		return ErrAlreadyDeleted
	}

	now := time.Now().UTC()
	if err := s.repo.SoftDelete(ctx, id, actor.UserID, now); err != nil {
		return fmt.Errorf("delete action: %w", err)
	}
	metrics.RecordActionDeleted()
	action.DeletedAt = &now
	action.DeletedBy = &actor.UserID

	names, _, err := s.resolver.Names(ctx, action.Participants)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("failed to resolve participants", "action_id", id, "error", err)
		names = action.Participants
	}

	s.announce(ctx, notifications.ActionDeleted{
		Meta:   notifications.NewMeta(actor.Name),
		Action: notifications.ActionInfoFrom(action, names),
	})

	return nil
}

func (s *Service) announce(ctx context.Context, event notifications.Event) {
	if s.announcer == nil {
		return
	}
	report := s.announcer.Announce(ctx, event, nil, "")
	if report.General.AllFailed() {
		ctxlog.FromContext(ctx).Warn("announcement not delivered", "kind", event.Kind())
	}
}

func validateOutcome(outcome domain.Outcome, amount *float64) error {
	if !outcome.IsValid() {
		return ErrInvalidOutcome
	}
	if amount == nil {
		return nil
	}
	if outcome == domain.OutcomeLose {
		return ErrAmountNotAllowed
	}
	if *amount < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func actionCursor(a domain.ActionRecord) cursor.Cursor {
	return cursor.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
}

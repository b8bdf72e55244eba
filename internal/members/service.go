// Package members manages the user roster.
package members

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bissquit/guildhall/internal/authz"
	"github.com/bissquit/guildhall/internal/domain"
	"github.com/bissquit/guildhall/internal/identity"
	"github.com/bissquit/guildhall/internal/notifications"
	"github.com/bissquit/guildhall/internal/pkg/ctxlog"
	"github.com/bissquit/guildhall/internal/pkg/cursor"
)

// Service implements roster business logic. Every mutation is checked by
// the gate first and announced after it is stored.
type Service struct {
	repo      Repository
	gate      *authz.Gate
	announcer notifications.Announcer
}

// NewService creates a new members service. announcer may be nil.
func NewService(repo Repository, gate *authz.Gate, announcer notifications.Announcer) *Service {
	return &Service{
		repo:      repo,
		gate:      gate,
		announcer: announcer,
	}
}

// CreateInput contains data for creating a member.
type CreateInput struct {
	Name      string
	Email     string
	Password  string
	RoleLevel int
	Discord   string
	Passport  string
	Pasta     string
	Locker    string
}

// UpdateInput contains the fields to change. Nil fields are left as is.
type UpdateInput struct {
	Name      *string
	Email     *string
	RoleLevel *int
	Discord   *string
	Passport  *string
	Pasta     *string
	Locker    *string
}

// ListInput contains listing parameters.
type ListInput struct {
	RoleLevel *int
	Limit     int
	Cursor    string
}

// Create adds a member. The general channel gets the announcement and the
// member's pasta gets it with the initial password.
func (s *Service) Create(ctx context.Context, actor authz.Actor, input CreateInput) (*domain.User, error) {
	if err := s.gate.Authorize(actor.Level, authz.OpCreateUser); err != nil {
		return nil, err
	}
	if input.RoleLevel <= 0 {
		return nil, ErrInvalidRoleLevel
	}
	if err := s.gate.AuthorizeAssign(actor.Level, input.RoleLevel); err != nil {
		return nil, err
	}

	hash, err := identity.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        normalizeEmail(input.Email),
		PasswordHash: hash,
		RoleLevel:    input.RoleLevel,
		Discord:      input.Discord,
		Passport:     input.Passport,
		Pasta:        input.Pasta,
		Locker:       input.Locker,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	event := notifications.UserCreated{
		Meta: notifications.NewMeta(actor.Name),
		User: notifications.UserInfoFrom(user),
	}
	personal := event
	personal.Password = input.Password
	s.announce(ctx, event.WithoutPassword(), personal, user.Pasta)

	return user, nil
}

// Get returns a member. Members may always read themselves.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id string) (*domain.User, error) {
	if !actor.Is(id) {
		if err := s.gate.Authorize(actor.Level, authz.OpViewAll); err != nil {
			return nil, err
		}
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// List returns one page of the roster.
func (s *Service) List(ctx context.Context, actor authz.Actor, input ListInput) (cursor.Page[domain.User], error) {
	if err := s.gate.Authorize(actor.Level, authz.OpViewAll); err != nil {
		return cursor.Page[domain.User]{}, err
	}

	after, err := cursor.Decode(input.Cursor)
	if err != nil {
		return cursor.Page[domain.User]{}, err
	}

	limit := cursor.ClampLimit(input.Limit)
	users, err := s.repo.List(ctx, ListFilter{
		RoleLevel: input.RoleLevel,
		Limit:     limit + 1,
		After:     after,
	})
	if err != nil {
		return cursor.Page[domain.User]{}, fmt.Errorf("list users: %w", err)
	}

	return cursor.NewPage(users, limit, userCursor), nil
}

// Update changes a member's profile. Nothing is stored or announced when no
// field actually changes.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id string, input UpdateInput) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := s.gate.AuthorizeOn(actor.Level, authz.OpEditUser, user.RoleLevel); err != nil {
		return nil, err
	}
	if input.RoleLevel != nil && *input.RoleLevel != user.RoleLevel {
		if *input.RoleLevel <= 0 {
			return nil, ErrInvalidRoleLevel
		}
		if err := s.gate.AuthorizeAssign(actor.Level, *input.RoleLevel); err != nil {
			return nil, err
		}
		// A demoted admin is no longer protected by the reserved operations.
		if user.Tier().IsAdmin() && !domain.TierOf(*input.RoleLevel).IsAdmin() {
			if err := s.gate.AuthorizeOn(actor.Level, authz.OpDemoteAdmin, user.RoleLevel); err != nil {
				return nil, err
			}
		}
	}

	changes := applyUpdate(user, input)
	if len(changes) == 0 {
		return user, nil
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.announce(ctx, notifications.UserEdited{
		Meta:    notifications.NewMeta(actor.Name),
		User:    notifications.UserInfoFrom(user),
		Changes: changes,
	}, nil, "")

	return user, nil
}

// Delete removes a member.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id string) error {
	if actor.Is(id) {
		return ErrCannotDeleteSelf
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if err := s.gate.AuthorizeOn(actor.Level, authz.OpDeleteUser, user.RoleLevel); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.announce(ctx, notifications.UserDeleted{
		Meta: notifications.NewMeta(actor.Name),
		User: notifications.UserInfoFrom(user),
	}, nil, "")

	return nil
}

// ResetPassword sets a new password. Members may change their own password;
// anyone else needs reset_password on the target.
func (s *Service) ResetPassword(ctx context.Context, actor authz.Actor, id, password string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if !actor.Is(id) {
		if err := s.gate.AuthorizeOn(actor.Level, authz.OpResetPassword, user.RoleLevel); err != nil {
			return err
		}
	}

	hash, err := identity.HashPassword(password)
	if err != nil {
		return err
	}

	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	ctxlog.FromContext(ctx).Info("password reset", "user_id", id, "by", actor.UserID)
	return nil
}

// Names resolves user ids to display names, keeping the order of ids.
// Unknown ids are returned in missing.
func (s *Service) Names(ctx context.Context, ids []string) (names []string, missing []string, err error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}

	users, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("get users: %w", err)
	}

	byID := make(map[string]string, len(users))
	for _, u := range users {
		byID[u.ID] = u.Name
	}

	names = make([]string, 0, len(ids))
	for _, id := range ids {
		name, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		names = append(names, name)
	}
	return names, missing, nil
}

func (s *Service) announce(ctx context.Context, event, personal notifications.Event, pasta string) {
	if s.announcer == nil {
		return
	}
	report := s.announcer.Announce(ctx, event, personal, pasta)
	if report.General.AllFailed() {
		ctxlog.FromContext(ctx).Warn("announcement not delivered", "kind", event.Kind())
	}
}

func applyUpdate(user *domain.User, input UpdateInput) []notifications.FieldChange {
	var changes []notifications.FieldChange

	setString := func(field string, dst *string, src *string, display func(string) string) {
		if src == nil || *src == *dst {
			return
		}
		changes = append(changes, notifications.FieldChange{
			Field: field,
			From:  display(*dst),
			To:    display(*src),
		})
		*dst = *src
	}
	plain := func(s string) string { return s }

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		setString("nome", &user.Name, &name, plain)
	}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		setString("email", &user.Email, &email, plain)
	}
	if input.RoleLevel != nil && *input.RoleLevel != user.RoleLevel {
		changes = append(changes, notifications.FieldChange{
			Field: "cargo",
			From:  roleChange(user.RoleLevel),
			To:    roleChange(*input.RoleLevel),
		})
		user.RoleLevel = *input.RoleLevel
	}
	setString("discord", &user.Discord, input.Discord, plain)
	setString("passaporte", &user.Passport, input.Passport, plain)
	setString("pasta", &user.Pasta, input.Pasta, notifications.MaskWebhookURL)
	setString("armario", &user.Locker, input.Locker, plain)

	return changes
}

func roleChange(level int) string {
	return domain.LabelFor(level) + " (" + strconv.Itoa(level) + ")"
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userCursor(u domain.User) cursor.Cursor {
	return cursor.Cursor{CreatedAt: u.CreatedAt, ID: u.ID}
}

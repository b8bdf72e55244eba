// Package notifications formats domain events into webhook messages and
// delivers them to the general and personal channels.
package notifications

import (
	"fmt"
	"time"

	"github.com/bissquit/guildhall/internal/domain"
)

// EventKind identifies the kind of a notification event.
type EventKind string

// Event kinds.
const (
	KindUserCreated      EventKind = "user-created"
	KindUserEdited       EventKind = "user-edited"
	KindUserDeleted      EventKind = "user-deleted"
	KindActionRegistered EventKind = "action-registered"
	KindActionDeleted    EventKind = "action-deleted"
	KindSaleRegistered   EventKind = "sale-registered"
)

// Event is one of the notification event variants declared in this file.
type Event interface {
	Kind() EventKind
	Validate() error
	header() Meta
}

// Meta is carried by every event.
type Meta struct {
	Actor      string
	OccurredAt time.Time
}

func (m Meta) header() Meta { return m }

func (m Meta) validate() error {
	if m.Actor == "" {
		return fmt.Errorf("%w: actor is required", ErrInvalidEvent)
	}
	return nil
}

// NewMeta stamps an event with its actor and the current time.
func NewMeta(actor string) Meta {
	return Meta{Actor: actor, OccurredAt: time.Now().UTC()}
}

// UserInfo is the subject of user events.
type UserInfo struct {
	ID        string
	Name      string
	Email     string
	RoleLevel int
	Discord   string
	Passport  string
	Locker    string
}

// UserInfoFrom copies the notifiable fields of a user.
func UserInfoFrom(u *domain.User) UserInfo {
	return UserInfo{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		RoleLevel: u.RoleLevel,
		Discord:   u.Discord,
		Passport:  u.Passport,
		Locker:    u.Locker,
	}
}

func (u UserInfo) validate() error {
	if u.Name == "" {
		return fmt.Errorf("%w: user name is required", ErrInvalidEvent)
	}
	return nil
}

// FieldChange describes one edited field.
type FieldChange struct {
	Field string `json:"campo" validate:"required"`
	From  string `json:"antes"`
	To    string `json:"depois"`
}

// ActionInfo is the subject of action events.
type ActionInfo struct {
	ID           string
	Name         string
	Outcome      domain.Outcome
	Amount       *float64
	Participants []string
}

// ActionInfoFrom copies an action record, with participant ids replaced by
// the given display names.
func ActionInfoFrom(a *domain.ActionRecord, participantNames []string) ActionInfo {
	return ActionInfo{
		ID:           a.ID,
		Name:         a.Name,
		Outcome:      a.Outcome,
		Amount:       a.Amount,
		Participants: participantNames,
	}
}

func (a ActionInfo) validate() error {
	if a.Name == "" {
		return fmt.Errorf("%w: action name is required", ErrInvalidEvent)
	}
	if !a.Outcome.IsValid() {
		return fmt.Errorf("%w: invalid outcome %q", ErrInvalidEvent, a.Outcome)
	}
	return nil
}

// UserCreated announces a new member. Password is only set for the
// member's personal channel.
type UserCreated struct {
	Meta
	User     UserInfo
	Password string
}

// Kind implements Event.
func (UserCreated) Kind() EventKind { return KindUserCreated }

// Validate implements Event.
func (e UserCreated) Validate() error {
	if err := e.Meta.validate(); err != nil {
		return err
	}
	return e.User.validate()
}

// WithoutPassword returns a copy safe for shared channels.
func (e UserCreated) WithoutPassword() UserCreated {
	e.Password = ""
	return e
}

// UserEdited announces changes to a member.
type UserEdited struct {
	Meta
	User    UserInfo
	Changes []FieldChange
}

// Kind implements Event.
func (UserEdited) Kind() EventKind { return KindUserEdited }

// Validate implements Event.
func (e UserEdited) Validate() error {
	if err := e.Meta.validate(); err != nil {
		return err
	}
	return e.User.validate()
}

// UserDeleted announces a removed member.
type UserDeleted struct {
	Meta
	User UserInfo
}

// Kind implements Event.
func (UserDeleted) Kind() EventKind { return KindUserDeleted }

// Validate implements Event.
func (e UserDeleted) Validate() error {
	if err := e.Meta.validate(); err != nil {
		return err
	}
	return e.User.validate()
}

// ActionRegistered announces a new ação.
type ActionRegistered struct {
	Meta
	Action ActionInfo
}

// Kind implements Event.
func (ActionRegistered) Kind() EventKind { return KindActionRegistered }

// Validate implements Event.
func (e ActionRegistered) Validate() error {
	if err := e.Meta.validate(); err != nil {
		return err
	}
	return e.Action.validate()
}

// ActionDeleted announces a deleted ação. Actor is who deleted it.
type ActionDeleted struct {
	Meta
	Action ActionInfo
}

// Kind implements Event.
func (ActionDeleted) Kind() EventKind { return KindActionDeleted }

// Validate implements Event.
func (e ActionDeleted) Validate() error {
	if err := e.Meta.validate(); err != nil {
		return err
	}
	return e.Action.validate()
}

// SaleRegistered announces a sale. SellerName is optional.
type SaleRegistered struct {
	Meta
	Sale       domain.Sale
	SellerName string
}

// Kind implements Event.
func (SaleRegistered) Kind() EventKind { return KindSaleRegistered }

// Validate implements Event.
func (e SaleRegistered) Validate() error {
	if err := e.Meta.validate(); err != nil {
		return err
	}
	if e.Sale.Product == "" {
		return fmt.Errorf("%w: product is required", ErrInvalidEvent)
	}
	if e.Sale.UserID == "" {
		return fmt.Errorf("%w: user is required", ErrInvalidEvent)
	}
	if e.Sale.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidEvent)
	}
	return nil
}

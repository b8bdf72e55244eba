package authz

import (
	"errors"

	"github.com/bissquit/guildhall/internal/domain"
)

// Errors.
var (
	ErrForbidden     = errors.New("insufficient permissions")
	ErrInvalidPolicy = errors.New("invalid authorization policy")
)

// Gate answers authorization questions against a Policy.
// It holds no mutable state and is safe for concurrent use.
type Gate struct {
	policy Policy
}

// NewGate creates a gate for the given policy.
func NewGate(policy Policy) *Gate {
	return &Gate{policy: policy}
}

// CanPerform reports whether actorLevel may perform op without a target.
func (g *Gate) CanPerform(actorLevel int, op Operation) bool {
	return g.policy.allows(domain.TierOf(actorLevel), op)
}

// CanPerformOn reports whether actorLevel may perform op on a user at
// targetLevel. A target numerically below the actor is never allowed.
func (g *Gate) CanPerformOn(actorLevel int, op Operation, targetLevel int) bool {
	if targetLevel < actorLevel {
		return false
	}

	actorTier := domain.TierOf(actorLevel)
	if !g.policy.allows(actorTier, op) {
		return false
	}

	if g.policy.isReserved(op) && domain.TierOf(targetLevel).IsAdmin() {
		return actorTier == domain.TierAdminGeral
	}

	return true
}

// CanAssign reports whether actorLevel may give a user newLevel.
// Nobody may hand out a level above their own.
func (g *Gate) CanAssign(actorLevel int, newLevel int) bool {
	if newLevel < actorLevel {
		return false
	}
	tier := domain.TierOf(actorLevel)
	return g.policy.allows(tier, OpCreateUser) || g.policy.allows(tier, OpEditUser)
}

// Authorize returns ErrForbidden when CanPerform is false.
func (g *Gate) Authorize(actorLevel int, op Operation) error {
	if !g.CanPerform(actorLevel, op) {
		return ErrForbidden
	}
	return nil
}

// AuthorizeOn returns ErrForbidden when CanPerformOn is false.
func (g *Gate) AuthorizeOn(actorLevel int, op Operation, targetLevel int) error {
	if !g.CanPerformOn(actorLevel, op, targetLevel) {
		return ErrForbidden
	}
	return nil
}

// AuthorizeAssign returns ErrForbidden when CanAssign is false.
func (g *Gate) AuthorizeAssign(actorLevel int, newLevel int) error {
	if !g.CanAssign(actorLevel, newLevel) {
		return ErrForbidden
	}
	return nil
}

package authz

import (
	"testing"

	"github.com/bissquit/guildhall/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_DeleteUserOnAdmin(t *testing.T) {
	gate := NewGate(DefaultPolicy())

	assert.False(t, gate.CanPerformOn(3, OpDeleteUser, 2), "gerente cannot delete an admin")
	assert.True(t, gate.CanPerformOn(1, OpDeleteUser, 2), "admin geral can delete an admin")
}

func TestGate_NeverActsOnMorePrivilegedTarget(t *testing.T) {
	gate := NewGate(DefaultPolicy())

	for actor := -3; actor <= 10; actor++ {
		for target := -5; target < actor; target++ {
			for _, op := range AllOperations() {
				assert.False(t, gate.CanPerformOn(actor, op, target),
					"actor %d must not %s target %d", actor, op, target)
			}
		}
	}
}

func TestGate_DeniesMissingCapability(t *testing.T) {
	policy := DefaultPolicy()
	gate := NewGate(policy)

	for level := -2; level <= 9; level++ {
		tier := domain.TierOf(level)
		for _, op := range AllOperations() {
			if tier == domain.TierAdminGeral {
				continue
			}
			has := false
			for _, allowed := range policy.Capabilities[tier] {
				if allowed == op {
					has = true
				}
			}
			if has {
				continue
			}
			assert.False(t, gate.CanPerform(level, op), "level %d should not %s", level, op)
			assert.False(t, gate.CanPerformOn(level, op, 99), "level %d should not %s", level, op)
		}
	}
}

func TestGate_TierCapabilities(t *testing.T) {
	gate := NewGate(DefaultPolicy())

	tests := []struct {
		name  string
		level int
		op    Operation
		want  bool
	}{
		{"admin geral creates user", 1, OpCreateUser, true},
		{"admin creates user", 2, OpCreateUser, true},
		{"gerente acao records action", 3, OpRecordAction, true},
		{"gerente acao deletes action", 3, OpDeleteAction, true},
		{"gerente acao cannot create user", 3, OpCreateUser, false},
		{"gerente vendas registers sale", 4, OpRegisterSale, true},
		{"gerente vendas cannot record action", 4, OpRecordAction, false},
		{"gerente metas manages goals", 5, OpManageGoals, true},
		{"gerente metas cannot edit user", 5, OpEditUser, false},
		{"managers view all", 5, OpViewAll, true},
		{"soldado cannot view all", 6, OpViewAll, false},
		{"unknown level is soldado", 42, OpRecordAction, false},
		{"zero level is soldado", 0, OpCreateUser, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.CanPerform(tt.level, tt.op))
		})
	}
}

func TestGate_ReservedOperations(t *testing.T) {
	gate := NewGate(DefaultPolicy())

	assert.False(t, gate.CanPerformOn(2, OpDeleteUser, 2), "admin cannot delete a peer admin")
	assert.False(t, gate.CanPerformOn(2, OpResetPassword, 2), "admin cannot reset a peer admin password")
	assert.True(t, gate.CanPerformOn(2, OpEditUser, 2), "admin can edit a peer admin")
	assert.True(t, gate.CanPerformOn(2, OpDeleteUser, 3), "admin can delete a manager")
	assert.True(t, gate.CanPerformOn(2, OpDeleteUser, 6), "admin can delete a soldado")
	assert.True(t, gate.CanPerformOn(1, OpResetPassword, 1), "admin geral can reset a peer")
}

func TestGate_DemoteAdmin(t *testing.T) {
	gate := NewGate(DefaultPolicy())

	assert.False(t, gate.CanPerformOn(2, OpDemoteAdmin, 2), "admin cannot demote a peer admin")
	assert.True(t, gate.CanPerformOn(1, OpDemoteAdmin, 2))
	assert.False(t, gate.CanPerformOn(3, OpDemoteAdmin, 3))
}

func TestGate_CanAssign(t *testing.T) {
	gate := NewGate(DefaultPolicy())

	assert.True(t, gate.CanAssign(1, 1))
	assert.True(t, gate.CanAssign(2, 2))
	assert.True(t, gate.CanAssign(2, 6))
	assert.False(t, gate.CanAssign(2, 1), "admin cannot promote to admin geral")
	assert.False(t, gate.CanAssign(3, 4), "managers cannot assign roles")
	assert.False(t, gate.CanAssign(6, 7))
}

func TestGate_Authorize(t *testing.T) {
	gate := NewGate(DefaultPolicy())

	assert.NoError(t, gate.Authorize(1, OpViewAll))
	assert.ErrorIs(t, gate.Authorize(6, OpViewAll), ErrForbidden)
	assert.ErrorIs(t, gate.AuthorizeOn(3, OpDeleteUser, 2), ErrForbidden)
	assert.ErrorIs(t, gate.AuthorizeAssign(2, 1), ErrForbidden)
}

func TestPolicyFromConfig_Overrides(t *testing.T) {
	policy, err := PolicyFromConfig(map[string][]string{
		"4": {"register_sale", "record_action"},
		"6": {"view_all"},
	}, []string{"delete_user"})
	require.NoError(t, err)

	gate := NewGate(policy)

	assert.True(t, gate.CanPerform(4, OpRecordAction))
	assert.False(t, gate.CanPerform(4, OpViewAll), "override replaces the tier entry")
	assert.True(t, gate.CanPerform(6, OpViewAll))
	assert.True(t, gate.CanPerform(3, OpDeleteAction), "untouched tiers keep defaults")
	assert.True(t, gate.CanPerformOn(2, OpResetPassword, 2), "reset_password no longer reserved")
	assert.False(t, gate.CanPerformOn(2, OpDeleteUser, 2))
}

func TestPolicyFromConfig_Invalid(t *testing.T) {
	_, err := PolicyFromConfig(map[string][]string{"9": {"view_all"}}, nil)
	assert.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = PolicyFromConfig(map[string][]string{"3": {"launch_rockets"}}, nil)
	assert.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = PolicyFromConfig(nil, []string{"nope"})
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestPolicy_AdminGeralAlwaysAllowed(t *testing.T) {
	policy, err := PolicyFromConfig(map[string][]string{"1": {}}, nil)
	require.NoError(t, err)

	gate := NewGate(policy)
	for _, op := range AllOperations() {
		assert.True(t, gate.CanPerform(1, op), op)
	}
}

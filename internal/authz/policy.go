// Package authz decides which role levels may perform which operations.
package authz

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/bissquit/guildhall/internal/domain"
)

// Operation is an administrative operation subject to authorization.
type Operation string

// Operations.
const (
	OpCreateUser    Operation = "create_user"
	OpEditUser      Operation = "edit_user"
	OpDeleteUser    Operation = "delete_user"
	OpResetPassword Operation = "reset_password"
	OpRecordAction  Operation = "record_action"
	OpDeleteAction  Operation = "delete_action"
	OpViewAll       Operation = "view_all"
	OpRegisterSale  Operation = "register_sale"
	OpManageGoals   Operation = "manage_goals"
	// OpDemoteAdmin moves a user out of the admin tiers.
	OpDemoteAdmin Operation = "demote_admin"
)

// AllOperations returns every known operation.
func AllOperations() []Operation {
	return []Operation{
		OpCreateUser, OpEditUser, OpDeleteUser, OpResetPassword,
		OpRecordAction, OpDeleteAction, OpViewAll,
		OpRegisterSale, OpManageGoals, OpDemoteAdmin,
	}
}

// IsValid checks if the operation is known.
func (o Operation) IsValid() bool {
	return slices.Contains(AllOperations(), o)
}

// Policy is the declared capability table.
//
// Capabilities lists what each tier may do. Reserved operations may be
// performed by any tier holding the capability, except against admin-tier
// targets, where only Tier 1 may perform them.
type Policy struct {
	Capabilities map[domain.Tier][]Operation
	Reserved     []Operation
}

// DefaultPolicy returns the built-in capability table.
func DefaultPolicy() Policy {
	return Policy{
		Capabilities: map[domain.Tier][]Operation{
			domain.TierAdminGeral:    AllOperations(),
			domain.TierAdmin:         AllOperations(),
			domain.TierGerenteAcao:   {OpRecordAction, OpDeleteAction, OpViewAll},
			domain.TierGerenteVendas: {OpRegisterSale, OpViewAll},
			domain.TierGerenteMetas:  {OpManageGoals, OpViewAll},
			domain.TierSoldado:       {},
		},
		Reserved: []Operation{OpDeleteUser, OpResetPassword, OpDemoteAdmin},
	}
}

// PolicyFromConfig builds a policy from the string form used in config files.
// Tiers missing from capabilities keep their default entry. A nil reserved
// slice keeps the default reserved set.
func PolicyFromConfig(capabilities map[string][]string, reserved []string) (Policy, error) {
	policy := DefaultPolicy()

	for key, ops := range capabilities {
		n, err := strconv.Atoi(key)
		if err != nil || domain.TierOf(n) != domain.Tier(n) {
			return Policy{}, fmt.Errorf("%w: unknown tier %q", ErrInvalidPolicy, key)
		}
		parsed, err := parseOperations(ops)
		if err != nil {
			return Policy{}, err
		}
		policy.Capabilities[domain.Tier(n)] = parsed
	}

	if reserved != nil {
		parsed, err := parseOperations(reserved)
		if err != nil {
			return Policy{}, err
		}
		policy.Reserved = parsed
	}

	return policy, nil
}

func parseOperations(values []string) ([]Operation, error) {
	ops := make([]Operation, 0, len(values))
	for _, v := range values {
		op := Operation(v)
		if !op.IsValid() {
			return nil, fmt.Errorf("%w: unknown operation %q", ErrInvalidPolicy, v)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (p Policy) allows(tier domain.Tier, op Operation) bool {
	if tier == domain.TierAdminGeral {
		return true
	}
	return slices.Contains(p.Capabilities[tier], op)
}

func (p Policy) isReserved(op Operation) bool {
	return slices.Contains(p.Reserved, op)
}

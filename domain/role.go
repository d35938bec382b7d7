package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RoleKind distinguishes entitlements granted to any positive balance from
// entitlements gated behind a numeric threshold.
type RoleKind string

const (
	// RoleKindHolder roles are eligible whenever the balance is positive.
	RoleKindHolder RoleKind = "holder"
	// RoleKindAmount roles require the balance to meet AmountThreshold.
	RoleKindAmount RoleKind = "amount"
)

// Role is a persisted role definition. Construct values through
// NewHolderRole or NewAmountRole so the kind/threshold pairing is always
// consistent: a holder role never carries a threshold, an amount role always
// carries a positive one.
type Role struct {
	ID              string          `bson:"_id,omitempty"`
	Name            string          `bson:"name"`
	Kind            RoleKind        `bson:"kind"`
	AmountThreshold decimal.Decimal `bson:"amount_threshold,omitempty"`
	ExternalGroupID string          `bson:"external_group_id"`
	CreatedAt       time.Time       `bson:"created_at"`
	UpdatedAt       time.Time       `bson:"updated_at"`
}

// NewHolderRole builds a holder-kind role definition.
func NewHolderRole(name, externalGroupID string) (Role, error) {
	if err := validateRoleFields(name, externalGroupID); err != nil {
		return Role{}, err
	}
	return Role{
		Name:            name,
		Kind:            RoleKindHolder,
		ExternalGroupID: externalGroupID,
	}, nil
}

// NewAmountRole builds an amount-kind role definition with a positive
// threshold.
func NewAmountRole(name, externalGroupID string, threshold decimal.Decimal) (Role, error) {
	if err := validateRoleFields(name, externalGroupID); err != nil {
		return Role{}, err
	}
	if threshold.Sign() <= 0 {
		return Role{}, fmt.Errorf("amount role %q requires a threshold greater than zero", name)
	}
	return Role{
		Name:            name,
		Kind:            RoleKindAmount,
		AmountThreshold: threshold,
		ExternalGroupID: externalGroupID,
	}, nil
}

func validateRoleFields(name, externalGroupID string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("role name is required")
	}
	if strings.TrimSpace(externalGroupID) == "" {
		return fmt.Errorf("role external group ID is required")
	}
	return nil
}

// MatchesName reports whether the role's name equals the given one.
// Role names match case-insensitively.
func (r Role) MatchesName(name string) bool {
	return strings.EqualFold(r.Name, name)
}

package roles

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/walletgate/walletgate/domain"
)

// Classification is the result of mapping a balance onto the configured
// role definitions.
type Classification struct {
	// CurrentRole is the highest-threshold amount role the balance
	// qualifies for, falling back to the first holder role when the
	// balance is positive. Empty when the balance qualifies for nothing.
	CurrentRole string `json:"currentRole,omitempty"`
	// EligibleRoles lists every holder role (balance > 0) plus at most the
	// single best amount role.
	EligibleRoles []string `json:"eligibleRoles"`
	// NextRole is the smallest-threshold amount role still out of reach,
	// empty once the balance exceeds every threshold.
	NextRole string `json:"nextRole,omitempty"`
	// ProgressPercent is how far the balance has moved from the current
	// threshold toward the next one, clamped to [0,100].
	ProgressPercent int `json:"progressPercent"`
}

// Classify maps a non-negative balance to a role classification. Thresholds
// are inclusive: a balance exactly equal to a threshold qualifies. Negative
// balances are a caller validation error and are not handled here.
func Classify(balance decimal.Decimal, defs []domain.Role) Classification {
	var holders, amounts []domain.Role
	for _, r := range defs {
		switch r.Kind {
		case domain.RoleKindAmount:
			amounts = append(amounts, r)
		default:
			holders = append(holders, r)
		}
	}

	sort.SliceStable(amounts, func(i, j int) bool {
		return amounts[i].AmountThreshold.LessThan(amounts[j].AmountThreshold)
	})

	result := Classification{EligibleRoles: []string{}}

	positive := balance.Sign() > 0
	if positive {
		for _, r := range holders {
			result.EligibleRoles = append(result.EligibleRoles, r.Name)
		}
	}

	// The best amount role is the highest threshold the balance meets; the
	// next role is the first threshold it does not.
	var best *domain.Role
	for i := range amounts {
		if amounts[i].AmountThreshold.LessThanOrEqual(balance) {
			best = &amounts[i]
		} else {
			result.NextRole = amounts[i].Name
			break
		}
	}

	previousThreshold := decimal.Zero
	if best != nil {
		result.EligibleRoles = append(result.EligibleRoles, best.Name)
		result.CurrentRole = best.Name
		previousThreshold = best.AmountThreshold
	} else if positive && len(holders) > 0 {
		result.CurrentRole = holders[0].Name
	}

	switch {
	case result.NextRole != "":
		next := nextThreshold(amounts, result.NextRole)
		span := next.Sub(previousThreshold)
		if span.Sign() > 0 {
			pct := balance.Sub(previousThreshold).Div(span).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
			result.ProgressPercent = clampPercent(int(pct))
		}
	case best != nil:
		// Topped out: every amount threshold is met.
		result.ProgressPercent = 100
	}

	return result
}

func nextThreshold(amounts []domain.Role, name string) decimal.Decimal {
	for _, r := range amounts {
		if r.Name == name {
			return r.AmountThreshold
		}
	}
	return decimal.Zero
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

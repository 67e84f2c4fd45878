package auth

import "strings"

// Role is a club staff role. Each role can do everything the roles below it can.
type Role string

const (
	// RoleViewer reads ledgers and reports.
	RoleViewer Role = "viewer"
	// RoleCashier records payments, issues payment links and simulates runs.
	RoleCashier Role = "cashier"
	// RoleTreasurer commits fee runs and changes prices.
	RoleTreasurer Role = "treasurer"
)

var roleRank = map[Role]int{
	RoleViewer:    1,
	RoleCashier:   2,
	RoleTreasurer: 3,
}

// ParseRole accepts a role name in any case.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := roleRank[role]; !ok {
		return "", false
	}
	return role, true
}

// Satisfies reports whether r may act where required is needed.
func (r Role) Satisfies(required Role) bool {
	return roleRank[r] > 0 && roleRank[r] >= roleRank[required]
}

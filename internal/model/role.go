package model

import "fmt"

// Role is the closed set of account roles. Role strings arriving from any
// trust boundary (token decode, cookie read, API input) must be validated
// with ParseRole before use.
type Role string

const (
	RoleMember     Role = "member"
	RoleClient     Role = "client"
	RoleTrainer    Role = "trainer"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super-admin"
)

// roleRank orders roles for staff-prefix access checks. Clients rank with
// members: they are customers, not staff.
var roleRank = map[Role]int{
	RoleMember:     1,
	RoleClient:     1,
	RoleTrainer:    2,
	RoleManager:    3,
	RoleAdmin:      4,
	RoleSuperAdmin: 5,
}

// ParseRole validates a raw role string against the known set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether the role is a member of the closed set.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether the role ranks at or above min in the hierarchy
// member < trainer < manager < admin < super-admin. Unknown roles rank
// below everything.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min] && r.Valid()
}

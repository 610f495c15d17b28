package user

import "strings"

// Role identifies the kind of principal a token represents.
type Role string

const (
	RolePassenger Role = "PASSENGER"
	RoleDriver    Role = "DRIVER"
	RoleAdmin     Role = "ADMIN"
)

// ParseRole normalizes and validates a role string.
func ParseRole(in string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(in)))
	return role, role.Valid()
}

// Valid reports whether role is one of the known role constants.
func (role Role) Valid() bool {
	switch role {
	case RolePassenger, RoleDriver, RoleAdmin:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Role.
func (role Role) String() string {
	return string(role)
}

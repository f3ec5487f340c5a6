package enums

import "fmt"

// ActorRole distinguishes buyers from back-office operators.
type ActorRole string

const (
	RoleCustomer ActorRole = "customer"
	RoleOperator ActorRole = "operator"
)

var validActorRoles = []ActorRole{
	RoleCustomer,
	RoleOperator,
}

// IsValid reports whether the value is a known role.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}

// Package models holds the persisted entities and the small value types shared across layers.
package models

// Role is the immutable category of a user. It decides which profile kind the user
// owns and which pool the deck draws from.
type Role string

// Roles.
const (
	RoleProvider Role = "provider"
	RoleSeeker   Role = "seeker"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleProvider || r == RoleSeeker
}

// Complement returns the role whose profiles r browses.
func (r Role) Complement() Role {
	if r == RoleProvider {
		return RoleSeeker
	}
	return RoleProvider
}

// Label is the user-facing name of the role.
func (r Role) Label() string {
	switch r {
	case RoleProvider:
		return "Psychologist"
	case RoleSeeker:
		return "Client"
	default:
		return "Unknown"
	}
}

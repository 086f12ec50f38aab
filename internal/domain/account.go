package domain

import "time"

// Role is the global role carried by an account and its tokens. Ticket-level
// permissions additionally require a binding to the specific ticket
// (opened_by, owner_id, pro_id); admin bypasses bindings.
type Role string

const (
	RoleTenant Role = "tenant"
	RoleOwner  Role = "owner"
	RolePro    Role = "pro"
	RoleAdmin  Role = "admin"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleTenant, RoleOwner, RolePro, RoleAdmin:
		return true
	default:
		return false
	}
}

// AccountStatus represents lifecycle states for an account.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
)

// Account is the domain model for every authenticated party: tenants,
// property owners, professionals and admins.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Status       AccountStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

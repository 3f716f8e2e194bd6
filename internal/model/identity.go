package model

// Role of an authenticated user
type Role string

const (
	// RoleCustomer - storefront customer
	RoleCustomer Role = "CUSTOMER"
	// RoleAdmin - back-office staff
	RoleAdmin Role = "ADMIN"
	// RoleDelivery - delivery person
	RoleDelivery Role = "DELIVERY"
)

// Identity is the authenticated principal attached to a connection at
// handshake time. It is supplied by the auth collaborator and never mutated
// by this core.
type Identity struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// IsStaff reports whether the identity may act on conversations it does not
// participate in (join, reply, change status).
func (i Identity) IsStaff() bool {
	return i.Role == RoleAdmin || i.Role == RoleDelivery
}

// ValidRole reports whether r is one of the three known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleCustomer, RoleAdmin, RoleDelivery:
		return true
	}
	return false
}

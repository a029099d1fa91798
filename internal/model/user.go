package model

import "time"

// User roles.  Customers register queue entries and reservations for
// themselves; owners additionally drive staff-side queue transitions for
// their own stores.
const (
	RoleCustomer = "CUSTOMER"
	RoleOwner    = "OWNER"
)

// User is an authenticated account.  Only the fields the engines need
// are modelled here; profile data lives with the external identity
// service.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
}

package model

import "time"

// User roles.
const (
	RoleCustomer = "CUSTOMER"
	RoleOwner    = "OWNER"
)

// User represents an application user record as stored in the `users`
// table.  Handlers define separate response types with appropriate JSON
// tags; this struct is used by the repository layer.
type User struct {
	ID           string    // users.id
	Username     string    // users.username
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
}

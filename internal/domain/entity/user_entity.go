package entity

import (
	"time"
)

// Role values stored on the users row.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the aggregate root for the account domain.
// Passwords are stored as bcrypt hashes in Password field.
// Username is immutable after registration.
type User struct {
	ID               string
	Username         string
	Email            string
	Password         string
	FirstName        string
	LastName         string
	Role             string
	Plan             string // membership tier name, set at registration
	TwoFactorEnabled bool
	TOTPSecret       string // base32, empty unless 2FA is enabled or being provisioned
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RecoveryCode is a single-use backup credential substituting for a TOTP code.
// Code is stored bcrypt-hashed; UsedAt marks consumption.
type RecoveryCode struct {
	ID       string
	UserID   string
	CodeHash string
	UsedAt   *time.Time
}

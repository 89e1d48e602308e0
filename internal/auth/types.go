package auth

import "time"

// User is a subject owned by the user directory. Reads return it with roles
// and their permissions already loaded.
type User struct {
	ID              string
	Email           string
	FirstName       string
	LastName        string
	PasswordHash    string
	IsActive        bool
	IsEmailVerified bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Roles           []Role
}

// Role groups permissions under a unique name.
type Role struct {
	ID          string
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Permissions []Permission
}

// Permission is an atomic capability matched by exact name. Resource and
// Action are descriptive only.
type Permission struct {
	ID          string
	Name        string
	Description string
	Resource    string
	Action      string
	IsActive    bool
	CreatedAt   time.Time
}

// RefreshToken is the ledger record of one issued refresh token.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Active reports whether the record can still be redeemed at now.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// TokenPair represents access and refresh tokens along with their expirations.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Session is the outcome of a successful login or registration.
type Session struct {
	Tokens TokenPair
	User   *User
}

// Registration carries the fields accepted on sign-up.
type Registration struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

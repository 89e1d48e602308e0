package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserDirectory
	Roles(ctx context.Context) RoleStore
	Permissions(ctx context.Context) PermissionStore
	RefreshTokens(ctx context.Context) TokenStore
}

// UserDirectory looks up and mutates subjects. Find methods return the user
// with roles and permissions loaded, or ErrNotFound.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	// Create persists u together with its role assignments (u.Roles[*].ID).
	// A taken email yields ErrDuplicateEmail.
	Create(ctx context.Context, u *User) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	// Delete removes the user, its role assignments and its refresh records.
	Delete(ctx context.Context, userID string) error
}

// RoleStore manages the role catalog.
type RoleStore interface {
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]Role, error)
	// Ensure upserts the role by name together with its permissions, making
	// the role's permission set exactly role.Permissions.
	Ensure(ctx context.Context, role Role) error
}

// PermissionStore exposes the permission catalog.
type PermissionStore interface {
	List(ctx context.Context) ([]Permission, error)
}

// TokenStore is the refresh token ledger.
type TokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	// FindByToken looks a record up by the digest produced by HashToken.
	FindByToken(ctx context.Context, tokenHash string) (*RefreshToken, error)
	// Revoke marks the record revoked. Revoking an already revoked record is not an error.
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	// Rotate revokes oldID and stores next as one atomic unit. The revoke only
	// applies while the old record is unrevoked and unexpired at now; otherwise
	// nothing is written and ErrTokenInactive is returned.
	Rotate(ctx context.Context, oldID string, now time.Time, next *RefreshToken) error
}

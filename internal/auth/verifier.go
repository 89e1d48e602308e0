package auth

import (
	"context"
	"errors"
	"strings"
)

// Verifier checks email/password pairs against the user directory. Unknown
// email, wrong password and an inactive account all yield the same
// ErrInvalidCredentials.
type Verifier struct {
	store  Store
	hasher *Hasher
}

// NewVerifier constructs a Verifier.
func NewVerifier(store Store, hasher *Hasher) *Verifier {
	return &Verifier{store: store, hasher: hasher}
}

// Verify returns the matching active user. Storage failures are returned
// as-is so they are not mistaken for bad credentials.
func (v *Verifier) Verify(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := v.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if err := v.hasher.CompareDummy(ctx, password); err != nil {
				return nil, err
			}
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	ok, err := v.hasher.Compare(ctx, user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok || !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

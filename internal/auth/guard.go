package auth

import (
	"context"
	"errors"

	"flowhq.dev/internal/obs"
)

// Guard is the per-request enforcement point. It verifies access tokens,
// loads the subject with its roles and evaluates route requirements.
type Guard struct {
	signer *TokenSigner
	store  Store
}

// NewGuard constructs a Guard.
func NewGuard(signer *TokenSigner, store Store) *Guard {
	return &Guard{signer: signer, store: store}
}

// Authenticate validates the access token and returns the principal it
// names. Missing, invalid or expired tokens and missing or inactive subjects
// all yield ErrUnauthenticated.
func (g *Guard) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := g.signer.VerifyAccess(token)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	user, err := g.store.Users(ctx).FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthenticated
		}
		return Principal{}, err
	}
	if !user.IsActive {
		return Principal{}, ErrUnauthenticated
	}
	return NewPrincipal(user), nil
}

// Check runs the full guard for one request: public routes pass without a
// token, everything else must authenticate and satisfy req. On ErrForbidden
// the authenticated principal is still returned so callers can audit it.
func (g *Guard) Check(ctx context.Context, token string, req Requirement) (Principal, error) {
	if req.Public {
		return Principal{}, nil
	}
	principal, err := g.Authenticate(ctx, token)
	if err != nil {
		obs.RecordGuardDecision("unauthenticated")
		return Principal{}, err
	}
	if err := req.Authorize(principal); err != nil {
		obs.RecordGuardDecision("forbidden")
		return principal, err
	}
	obs.RecordGuardDecision("allowed")
	return principal, nil
}

package auth

import (
	"context"
	"errors"
	"testing"
)

func TestGuardAuthenticate(t *testing.T) {
	svc, store, signer := newTestService(t)
	s := registerBob(t, svc)
	guard := NewGuard(signer, store)
	ctx := context.Background()

	p, err := guard.Authenticate(ctx, s.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.UserID() != s.User.ID || !p.HasPermission(PermReadArticle) {
		t.Fatalf("unexpected principal: %v %v", p.UserID(), p.PermissionNames())
	}

	ghost, _, err := signer.IssueAccess("ghost", "ghost@x.com")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	for name, tok := range map[string]string{
		"empty":         "",
		"garbage":       "abc.def.ghi",
		"refresh token": s.Tokens.RefreshToken,
		"unknown user":  ghost,
	} {
		if _, err := guard.Authenticate(ctx, tok); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("%s: expected ErrUnauthenticated, got %v", name, err)
		}
	}

	if err := store.SetUserActive(s.User.ID, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	if _, err := guard.Authenticate(ctx, s.Tokens.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("inactive user: expected ErrUnauthenticated, got %v", err)
	}
}

func TestGuardCheck(t *testing.T) {
	svc, store, signer := newTestService(t)
	s := registerBob(t, svc)
	guard := NewGuard(signer, store)
	ctx := context.Background()

	if _, err := guard.Check(ctx, "", Requirement{Public: true}); err != nil {
		t.Fatalf("public route: %v", err)
	}
	if _, err := guard.Check(ctx, "", Requirement{}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("missing token: %v", err)
	}

	p, err := guard.Check(ctx, s.Tokens.AccessToken, Requirement{Roles: []string{RoleAdmin}})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if p.UserID() != s.User.ID {
		t.Fatal("forbidden result should still name the caller")
	}

	if err := store.AssignRole(s.User.ID, RoleAdmin); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if _, err := guard.Check(ctx, s.Tokens.AccessToken, Requirement{Roles: []string{RoleAdmin}, Permissions: []string{PermDeleteRole}}); err != nil {
		t.Fatalf("admin should pass: %v", err)
	}
}

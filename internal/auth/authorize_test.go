package auth

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func perm(name string, active bool) Permission {
	p := builtinPermission(name, "")
	p.IsActive = active
	return p
}

func TestPrincipalPermissions(t *testing.T) {
	user := &User{
		ID: "u1",
		Roles: []Role{
			{Name: RoleEditor, IsActive: true, Permissions: []Permission{
				perm(PermReadArticle, true), perm(PermUpdateArticle, true),
			}},
			{Name: RoleUser, IsActive: true, Permissions: []Permission{
				perm(PermReadArticle, true),
			}},
		},
	}

	principal := NewPrincipal(user)

	if !principal.HasPermission(PermUpdateArticle) {
		t.Fatalf("expected permission")
	}
	if principal.HasPermission(PermDeleteUser) {
		t.Fatalf("unexpected permission")
	}
	got := ResolvePermissions(user)
	want := []string{PermReadArticle, PermUpdateArticle}
	if !slices.Equal(got, want) {
		t.Fatalf("expected deduplicated union %v, got %v", want, got)
	}
}

func TestInactiveRolesAndPermissionsGrantNothing(t *testing.T) {
	user := &User{
		ID: "u1",
		Roles: []Role{
			{Name: RoleAdmin, IsActive: false, Permissions: []Permission{perm(PermDeleteUser, true)}},
			{Name: RoleEditor, IsActive: true, Permissions: []Permission{
				perm(PermReadArticle, true), perm(PermPublishArticle, false),
			}},
		},
	}
	p := NewPrincipal(user)
	if p.HasRole(RoleAdmin) || p.HasPermission(PermDeleteUser) {
		t.Fatalf("inactive role must not count")
	}
	if p.HasPermission(PermPublishArticle) {
		t.Fatalf("inactive permission must not count")
	}
	if !p.HasRole(RoleEditor) || !p.HasPermission(PermReadArticle) {
		t.Fatalf("active grants missing: %v %v", p.RoleNames(), p.PermissionNames())
	}
}

func TestNewPrincipalNilUser(t *testing.T) {
	p := NewPrincipal(nil)
	if p.UserID() != "" || len(p.Permissions) != 0 {
		t.Fatalf("expected empty principal, got %+v", p)
	}
}

func TestRequirementAuthorize(t *testing.T) {
	editor := NewPrincipal(&User{ID: "e", Roles: []Role{BuiltinRoles[1]}})
	user := NewPrincipal(&User{ID: "u", Roles: []Role{BuiltinRoles[2]}})
	admin := NewPrincipal(&User{ID: "a", Roles: []Role{BuiltinRoles[0]}})

	cases := []struct {
		name    string
		req     Requirement
		p       Principal
		allowed bool
	}{
		{"public needs nothing", Requirement{Public: true}, Principal{}, true},
		{"signed-in only", Requirement{}, user, true},
		{"roles are alternatives", Requirement{Roles: []string{RoleAdmin, RoleEditor}}, editor, true},
		{"no listed role", Requirement{Roles: []string{RoleAdmin, RoleEditor}}, user, false},
		{"permissions are cumulative", Requirement{Permissions: []string{PermReadArticle, PermPublishArticle}}, editor, true},
		{"one permission missing", Requirement{Permissions: []string{PermReadArticle, PermPublishArticle}}, user, false},
		{"role and permission both needed", Requirement{Roles: []string{RoleEditor}, Permissions: []string{PermReadRole}}, editor, false},
		{"admin holds everything", Requirement{Roles: []string{RoleAdmin}, Permissions: []string{PermReadRole, PermDeleteUser}}, admin, true},
	}
	for _, tc := range cases {
		err := tc.req.Authorize(tc.p)
		if tc.allowed && err != nil {
			t.Fatalf("%s: expected allowed, got %v", tc.name, err)
		}
		if !tc.allowed && !errors.Is(err, ErrForbidden) {
			t.Fatalf("%s: expected ErrForbidden, got %v", tc.name, err)
		}
	}
}

func TestBuiltinCatalog(t *testing.T) {
	if len(BuiltinPermissions) != 13 {
		t.Fatalf("expected 13 builtin permissions, got %d", len(BuiltinPermissions))
	}
	admin := NewPrincipal(&User{Roles: []Role{BuiltinRoles[0]}})
	if len(admin.Permissions) != len(BuiltinPermissions) {
		t.Fatalf("admin should hold every permission, got %v", admin.PermissionNames())
	}
	editor := NewPrincipal(&User{Roles: []Role{BuiltinRoles[1]}})
	if len(editor.Permissions) != 5 || editor.HasPermission(PermReadUser) {
		t.Fatalf("unexpected editor permissions: %v", editor.PermissionNames())
	}
	p := BuiltinPermissions[0]
	if p.Action != "create" || p.Resource != "user" {
		t.Fatalf("unexpected split of %s: %s/%s", p.Name, p.Action, p.Resource)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if _, ok := UserIDFromContext(ctx); ok {
		t.Fatal("unexpected user id on empty context")
	}
	ctx = ContextWithPrincipal(ctx, NewPrincipal(&User{ID: "user-7"}))
	ctx = ContextWithToken(ctx, "tok")
	id, ok := UserIDFromContext(ctx)
	if !ok || id != "user-7" {
		t.Fatalf("unexpected user id: %s, ok=%v", id, ok)
	}
	if tok, ok := TokenFromContext(ctx); !ok || tok != "tok" {
		t.Fatalf("unexpected token: %q", tok)
	}
}

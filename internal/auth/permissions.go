package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	PermCreateUser = "create:user"
	PermReadUser   = "read:user"
	PermUpdateUser = "update:user"
	PermDeleteUser = "delete:user"

	PermCreateRole = "create:role"
	PermReadRole   = "read:role"
	PermUpdateRole = "update:role"
	PermDeleteRole = "delete:role"

	PermCreateArticle  = "create:article"
	PermReadArticle    = "read:article"
	PermUpdateArticle  = "update:article"
	PermDeleteArticle  = "delete:article"
	PermPublishArticle = "publish:article"
)

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleUser   = "user"
)

// DefaultRole is assigned to every self-registered user.
const DefaultRole = RoleUser

var BuiltinPermissions = []Permission{
	builtinPermission(PermCreateUser, "Create new users"),
	builtinPermission(PermReadUser, "View user details"),
	builtinPermission(PermUpdateUser, "Update user information"),
	builtinPermission(PermDeleteUser, "Delete users"),
	builtinPermission(PermCreateRole, "Create new roles"),
	builtinPermission(PermReadRole, "View role details"),
	builtinPermission(PermUpdateRole, "Update role information"),
	builtinPermission(PermDeleteRole, "Delete roles"),
	builtinPermission(PermCreateArticle, "Create new articles"),
	builtinPermission(PermReadArticle, "View articles"),
	builtinPermission(PermUpdateArticle, "Update articles"),
	builtinPermission(PermDeleteArticle, "Delete articles"),
	builtinPermission(PermPublishArticle, "Publish articles"),
}

var BuiltinRoles = []Role{
	builtinRole(RoleAdmin, "Administrator with full access", allPermissionNames()...),
	builtinRole(RoleEditor, "Editor who can manage articles",
		PermCreateArticle, PermReadArticle, PermUpdateArticle, PermDeleteArticle, PermPublishArticle),
	builtinRole(RoleUser, "Regular user with read access", PermReadArticle),
}

// SeedCatalog installs the builtin roles that are missing from store.
// Roles that already exist are left untouched, including their permission
// links and active flag, so edits made by operators survive restarts.
func SeedCatalog(ctx context.Context, store Store) error {
	roles := store.Roles(ctx)
	for _, role := range BuiltinRoles {
		_, err := roles.FindByName(ctx, role.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("lookup role %s: %w", role.Name, err)
		}
		if err := roles.Ensure(ctx, role); err != nil {
			return fmt.Errorf("ensure role %s: %w", role.Name, err)
		}
	}
	return nil
}

func builtinPermission(name, description string) Permission {
	action, resource, _ := strings.Cut(name, ":")
	return Permission{
		Name:        name,
		Description: description,
		Resource:    resource,
		Action:      action,
		IsActive:    true,
	}
}

func builtinRole(name, description string, perms ...string) Role {
	role := Role{Name: name, Description: description, IsActive: true}
	for _, p := range perms {
		for _, bp := range BuiltinPermissions {
			if bp.Name == p {
				role.Permissions = append(role.Permissions, bp)
			}
		}
	}
	return role
}

func allPermissionNames() []string {
	names := make([]string, 0, len(BuiltinPermissions))
	for _, p := range BuiltinPermissions {
		names = append(names, p.Name)
	}
	return names
}

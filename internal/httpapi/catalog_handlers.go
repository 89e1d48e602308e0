package httpapi

import (
	"net/http"

	"flowhq.dev/internal/auth"
)

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	roles, err := a.svc.Roles(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	out := make([]auth.RoleView, 0, len(roles))
	for _, role := range roles {
		out = append(out, auth.RoleViewOf(role))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	perms, err := a.svc.Permissions(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	out := make([]auth.PermissionView, 0, len(perms))
	for _, p := range perms {
		out = append(out, auth.PermissionViewOf(p))
	}
	writeJSON(w, http.StatusOK, out)
}

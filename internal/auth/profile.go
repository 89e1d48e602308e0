package auth

import "time"

// PermissionView is the public shape of a permission.
type PermissionView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
}

// RoleView is the public shape of a role with its permissions.
type RoleView struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Permissions []PermissionView `json:"permissions"`
}

// Profile is returned to the authenticated user about themselves.
type Profile struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	IsActive        bool       `json:"isActive"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	Roles           []RoleView `json:"roles"`
}

// UserSummary is the user block returned next to freshly issued tokens.
type UserSummary struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Roles     []string `json:"roles"`
}

func ProfileOf(u *User) Profile {
	p := Profile{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		IsActive:        u.IsActive,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
		Roles:           make([]RoleView, 0, len(u.Roles)),
	}
	for _, r := range u.Roles {
		p.Roles = append(p.Roles, RoleViewOf(r))
	}
	return p
}

func RoleViewOf(r Role) RoleView {
	view := RoleView{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Permissions: make([]PermissionView, 0, len(r.Permissions)),
	}
	for _, p := range r.Permissions {
		view.Permissions = append(view.Permissions, PermissionViewOf(p))
	}
	return view
}

func PermissionViewOf(p Permission) PermissionView {
	return PermissionView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Resource:    p.Resource,
		Action:      p.Action,
	}
}

func SummaryOf(u *User) UserSummary {
	s := UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Roles:     make([]string, 0, len(u.Roles)),
	}
	for _, r := range u.Roles {
		s.Roles = append(s.Roles, r.Name)
	}
	return s
}

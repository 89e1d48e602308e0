package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"flowhq.dev/internal/ids"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps users, the role catalog and the refresh token ledger in
// process memory. One mutex guards everything, which makes Rotate trivially
// atomic.
type MemoryStore struct {
	mu sync.RWMutex

	users     map[string]*memUser
	byEmail   map[string]string
	roles     map[string]*memRole
	roleNames map[string]string
	perms     map[string]Permission // keyed by name
	tokens    map[string]*RefreshToken
	byHash    map[string]string
}

type memUser struct {
	user    User
	roleIDs []string
}

type memRole struct {
	role      Role
	permNames []string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]*memUser),
		byEmail:   make(map[string]string),
		roles:     make(map[string]*memRole),
		roleNames: make(map[string]string),
		perms:     make(map[string]Permission),
		tokens:    make(map[string]*RefreshToken),
		byHash:    make(map[string]string),
	}
}

func (s *MemoryStore) Users(context.Context) UserDirectory { return memUsers{s} }
func (s *MemoryStore) Roles(context.Context) RoleStore { return memRoles{s} }
func (s *MemoryStore) Permissions(context.Context) PermissionStore { return memPermissions{s} }
func (s *MemoryStore) RefreshTokens(context.Context) TokenStore { return memTokens{s} }

// SetUserActive flips the active flag of a user.
func (s *MemoryStore) SetUserActive(userID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.user.IsActive = active
	return nil
}

// AssignRole adds the named role to a user.
func (s *MemoryStore) AssignRole(userID, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	roleID, ok := s.roleNames[roleName]
	if !ok {
		return ErrNotFound
	}
	for _, id := range u.roleIDs {
		if id == roleID {
			return nil
		}
	}
	u.roleIDs = append(u.roleIDs, roleID)
	return nil
}

// loadUser must be called with mu held.
func (s *MemoryStore) loadUser(u *memUser) *User {
	out := u.user
	out.Roles = make([]Role, 0, len(u.roleIDs))
	for _, id := range u.roleIDs {
		if r, ok := s.roles[id]; ok {
			out.Roles = append(out.Roles, s.loadRole(r))
		}
	}
	return &out
}

// loadRole must be called with mu held.
func (s *MemoryStore) loadRole(r *memRole) Role {
	out := r.role
	out.Permissions = make([]Permission, 0, len(r.permNames))
	for _, name := range r.permNames {
		if p, ok := s.perms[name]; ok {
			out.Permissions = append(out.Permissions, p)
		}
	}
	return out
}

type memUsers struct{ s *MemoryStore }

func (m memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	id, ok := m.s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return m.s.loadUser(m.s.users[id]), nil
}

func (m memUsers) FindByID(_ context.Context, id string) (*User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	u, ok := m.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.s.loadUser(u), nil
}

func (m memUsers) Create(_ context.Context, u *User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	email := normalizeEmail(u.Email)
	if _, taken := m.s.byEmail[email]; taken {
		return ErrDuplicateEmail
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	stored := &memUser{user: *u}
	stored.user.Email = email
	stored.user.Roles = nil
	for _, r := range u.Roles {
		if _, ok := m.s.roles[r.ID]; !ok {
			return ErrNotFound
		}
		stored.roleIDs = append(stored.roleIDs, r.ID)
	}
	m.s.users[u.ID] = stored
	m.s.byEmail[email] = u.ID
	return nil
}

func (m memUsers) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.user.PasswordHash = hash
	u.user.UpdatedAt = time.Now().UTC()
	return nil
}

func (m memUsers) Delete(_ context.Context, userID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[userID]
	if !ok {
		return ErrNotFound
	}
	delete(m.s.byEmail, u.user.Email)
	delete(m.s.users, userID)
	for id, tok := range m.s.tokens {
		if tok.UserID == userID {
			delete(m.s.byHash, tok.TokenHash)
			delete(m.s.tokens, id)
		}
	}
	return nil
}

type memRoles struct{ s *MemoryStore }

func (m memRoles) FindByName(_ context.Context, name string) (*Role, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	id, ok := m.s.roleNames[name]
	if !ok {
		return nil, ErrNotFound
	}
	role := m.s.loadRole(m.s.roles[id])
	return &role, nil
}

func (m memRoles) List(context.Context) ([]Role, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	out := make([]Role, 0, len(m.s.roles))
	for _, r := range m.s.roles {
		out = append(out, m.s.loadRole(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m memRoles) Ensure(_ context.Context, role Role) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	now := time.Now().UTC()
	names := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		existing, ok := m.s.perms[p.Name]
		if !ok {
			existing = p
			existing.ID = ids.New()
			existing.CreatedAt = now
		} else {
			existing.Description = p.Description
			existing.Resource = p.Resource
			existing.Action = p.Action
			existing.IsActive = p.IsActive
		}
		m.s.perms[p.Name] = existing
		names = append(names, p.Name)
	}

	if id, ok := m.s.roleNames[role.Name]; ok {
		r := m.s.roles[id]
		r.role.Description = role.Description
		r.role.IsActive = role.IsActive
		r.role.UpdatedAt = now
		r.permNames = names
		return nil
	}
	stored := role
	stored.ID = ids.New()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.Permissions = nil
	m.s.roles[stored.ID] = &memRole{role: stored, permNames: names}
	m.s.roleNames[stored.Name] = stored.ID
	return nil
}

type memPermissions struct{ s *MemoryStore }

func (m memPermissions) List(context.Context) ([]Permission, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	out := make([]Permission, 0, len(m.s.perms))
	for _, p := range m.s.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memTokens struct{ s *MemoryStore }

func (m memTokens) Create(_ context.Context, tok *RefreshToken) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.insertLocked(tok)
}

func (m memTokens) insertLocked(tok *RefreshToken) error {
	if _, ok := m.s.users[tok.UserID]; !ok {
		return ErrNotFound
	}
	if _, dup := m.s.byHash[tok.TokenHash]; dup {
		return ErrInvalidInput
	}
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = time.Now().UTC()
	}
	stored := *tok
	m.s.tokens[tok.ID] = &stored
	m.s.byHash[tok.TokenHash] = tok.ID
	return nil
}

func (m memTokens) FindByToken(_ context.Context, tokenHash string) (*RefreshToken, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	id, ok := m.s.byHash[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	out := *m.s.tokens[id]
	return &out, nil
}

func (m memTokens) Revoke(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	tok, ok := m.s.tokens[id]
	if !ok {
		return ErrNotFound
	}
	tok.Revoked = true
	return nil
}

func (m memTokens) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, tok := range m.s.tokens {
		if tok.UserID == userID && !tok.Revoked {
			tok.Revoked = true
			n++
		}
	}
	return n, nil
}

func (m memTokens) Rotate(_ context.Context, oldID string, now time.Time, next *RefreshToken) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	old, ok := m.s.tokens[oldID]
	if !ok || !old.Active(now) {
		return ErrTokenInactive
	}
	if err := m.insertLocked(next); err != nil {
		return err
	}
	old.Revoked = true
	return nil
}

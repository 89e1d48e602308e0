package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"flowhq.dev/internal/ids"
	"flowhq.dev/internal/obs"
)

// Service is the session manager: login, registration, refresh rotation,
// logout and password changes over the refresh token ledger.
type Service struct {
	store       Store
	signer      *TokenSigner
	hasher      *Hasher
	verifier    *Verifier
	now         func() time.Time
	defaultRole string

	replayLog *rate.Sometimes
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithHasher overrides the password hasher.
func WithHasher(h *Hasher) ServiceOption {
	return func(s *Service) error {
		if h == nil {
			return errors.New("auth: hasher is nil")
		}
		s.hasher = h
		return nil
	}
}

// WithDefaultRole overrides the role assigned on registration.
func WithDefaultRole(name string) ServiceOption {
	return func(s *Service) error {
		if name = strings.TrimSpace(name); name != "" {
			s.defaultRole = name
		}
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, signer *TokenSigner, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if signer == nil {
		return nil, errors.New("auth: token signer is required")
	}
	svc := &Service{
		store:       store,
		signer:      signer,
		now:         time.Now,
		defaultRole: DefaultRole,
		replayLog:   &rate.Sometimes{Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	if svc.hasher == nil {
		svc.hasher = NewHasher(DefaultHashCost, 0)
	}
	svc.verifier = NewVerifier(store, svc.hasher)
	return svc, nil
}

// EnsureBuiltins ensures predefined roles and permissions exist.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return SeedCatalog(ctx, s.store)
}

// Register creates a user with the default role and opens a session for it.
func (s *Service) Register(ctx context.Context, reg Registration) (Session, error) {
	reg.Email = normalizeEmail(reg.Email)
	reg.FirstName = strings.TrimSpace(reg.FirstName)
	reg.LastName = strings.TrimSpace(reg.LastName)
	if err := validateRegistration(reg); err != nil {
		return Session{}, err
	}

	users := s.store.Users(ctx)
	if _, err := users.FindByEmail(ctx, reg.Email); err == nil {
		return Session{}, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return Session{}, err
	}

	role, err := s.store.Roles(ctx).FindByName(ctx, s.defaultRole)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, fmt.Errorf("%w: %s", ErrDefaultRoleMissing, s.defaultRole)
		}
		return Session{}, err
	}

	hash, err := s.hasher.Hash(ctx, reg.Password)
	if err != nil {
		return Session{}, err
	}
	now := s.now().UTC()
	user := &User{
		ID:           ids.New(),
		Email:        reg.Email,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
		Roles:        []Role{*role},
	}
	if err := users.Create(ctx, user); err != nil {
		return Session{}, err
	}
	created, err := users.FindByID(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}
	pair, err := s.openSession(ctx, created)
	if err != nil {
		// Undo the account so the caller can retry with the same email.
		if derr := users.Delete(context.WithoutCancel(ctx), user.ID); derr != nil {
			obs.LogEvent(obs.LevelError, "register_cleanup_failed", map[string]any{
				"user_id": user.ID,
				"error":   derr.Error(),
			})
		}
		return Session{}, err
	}
	return Session{Tokens: pair, User: created}, nil
}

// Login verifies credentials and opens a new session.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			obs.RecordLogin("rejected")
		}
		return Session{}, err
	}
	pair, err := s.openSession(ctx, user)
	if err != nil {
		return Session{}, err
	}
	obs.RecordLogin("success")
	return Session{Tokens: pair, User: user}, nil
}

// Refresh redeems a refresh token exactly once and returns a new pair. Every
// failure mode (bad signature, unknown, revoked, expired, lost race) is
// reported as ErrInvalidRefreshToken.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	pair, err := s.refresh(ctx, refreshToken)
	switch {
	case err == nil:
		obs.RecordRefresh("success")
	case errors.Is(err, ErrInvalidRefreshToken):
		obs.RecordRefresh("rejected")
	default:
		obs.RecordRefresh("error")
	}
	return pair, err
}

func (s *Service) refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.signer.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	if !ids.Valid(claims.TokenID) {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	tokens := s.store.RefreshTokens(ctx)
	record, err := tokens.FindByToken(ctx, HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, err
	}
	if record.ID != claims.TokenID || record.UserID != claims.Subject {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	now := s.now()
	if !record.Active(now) {
		if record.Revoked {
			s.logReplay(record)
		}
		return TokenPair{}, ErrInvalidRefreshToken
	}

	user, err := s.store.Users(ctx).FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, err
	}
	if !user.IsActive {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	pair, next, err := s.mintTokens(user)
	if err != nil {
		return TokenPair{}, err
	}
	if err := tokens.Rotate(ctx, record.ID, now, next); err != nil {
		if errors.Is(err, ErrTokenInactive) {
			s.logReplay(record)
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, err
	}
	return pair, nil
}

// Logout revokes the record behind refreshToken. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	tokens := s.store.RefreshTokens(ctx)
	record, err := tokens.FindByToken(ctx, HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if record.Revoked {
		return nil
	}
	return tokens.Revoke(ctx, record.ID)
}

// LogoutAll revokes every unrevoked refresh token owned by userID.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	n, err := s.store.RefreshTokens(ctx).RevokeAllForUser(ctx, userID)
	if err != nil {
		return err
	}
	obs.LogEvent(obs.LevelInfo, "sessions_revoked", map[string]any{"user_id": userID, "count": n})
	return nil
}

// ChangePassword replaces the password after checking the current one and
// then revokes every session of the user, including the caller's.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if err := validatePassword(next); err != nil {
		return err
	}
	users := s.store.Users(ctx)
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	ok, err := s.hasher.Compare(ctx, user.PasswordHash, current)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(ctx, next)
	if err != nil {
		return err
	}
	if err := users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}
	return s.LogoutAll(ctx, user.ID)
}

// Profile returns the public view of the user with roles and permissions.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	user, err := s.store.Users(ctx).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, ErrUnauthenticated
		}
		return Profile{}, err
	}
	return ProfileOf(user), nil
}

// Roles lists the role catalog.
func (s *Service) Roles(ctx context.Context) ([]Role, error) {
	return s.store.Roles(ctx).List(ctx)
}

// Permissions lists the permission catalog.
func (s *Service) Permissions(ctx context.Context) ([]Permission, error) {
	return s.store.Permissions(ctx).List(ctx)
}

func (s *Service) openSession(ctx context.Context, user *User) (TokenPair, error) {
	pair, record, err := s.mintTokens(user)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.RefreshTokens(ctx).Create(ctx, record); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (s *Service) mintTokens(user *User) (TokenPair, *RefreshToken, error) {
	recordID := ids.New()
	access, accessExp, err := s.signer.IssueAccess(user.ID, user.Email)
	if err != nil {
		return TokenPair{}, nil, err
	}
	refresh, refreshExp, err := s.signer.IssueRefresh(user.ID, user.Email, recordID)
	if err != nil {
		return TokenPair{}, nil, err
	}
	record := &RefreshToken{
		ID:        recordID,
		UserID:    user.ID,
		TokenHash: HashToken(refresh),
		ExpiresAt: refreshExp,
		CreatedAt: s.now().UTC(),
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, record, nil
}

func (s *Service) logReplay(record *RefreshToken) {
	s.replayLog.Do(func() {
		obs.LogEvent(obs.LevelWarn, "refresh_replay_rejected", map[string]any{
			"user_id":   record.UserID,
			"record_id": record.ID,
		})
	})
}

// HashToken returns the ledger lookup digest of a signed refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

func validateRegistration(reg Registration) error {
	if reg.Email == "" || !strings.Contains(reg.Email, "@") {
		return fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if reg.FirstName == "" || reg.LastName == "" {
		return fmt.Errorf("%w: first and last name are required", ErrInvalidInput)
	}
	return validatePassword(reg.Password)
}

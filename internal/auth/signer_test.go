package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestSigner(t *testing.T, clock *testClock) *TokenSigner {
	t.Helper()
	cfg := SignerConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    7 * 24 * time.Hour,
	}
	if clock != nil {
		cfg.Now = clock.Now
	}
	s, err := NewTokenSigner(cfg)
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	return s
}

func TestNewTokenSignerValidation(t *testing.T) {
	cases := []SignerConfig{
		{AccessSecret: "", RefreshSecret: "r", AccessTTL: time.Minute, RefreshTTL: time.Hour},
		{AccessSecret: "same", RefreshSecret: "same", AccessTTL: time.Minute, RefreshTTL: time.Hour},
		{AccessSecret: "a", RefreshSecret: "r", AccessTTL: 0, RefreshTTL: time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewTokenSigner(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestAccessRoundTrip(t *testing.T) {
	s := newTestSigner(t, nil)
	token, exp, err := s.IssueAccess("u1", "bob@x.com")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expected future expiry, got %v", exp)
	}
	claims, err := s.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "bob@x.com" || claims.Issuer != defaultIssuer {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected jti")
	}
}

func TestKeysAreSeparated(t *testing.T) {
	s := newTestSigner(t, nil)
	access, _, err := s.IssueAccess("u1", "bob@x.com")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	refresh, _, err := s.IssueRefresh("u1", "bob@x.com", "rec-1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := s.VerifyRefresh(access); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
	if _, err := s.VerifyAccess(refresh); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
	claims, err := s.VerifyRefresh(refresh)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if claims.TokenID != "rec-1" {
		t.Fatalf("unexpected tokenId %q", claims.TokenID)
	}
}

func TestExpiredTokens(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestSigner(t, clock)
	access, _, _ := s.IssueAccess("u1", "bob@x.com")
	refresh, _, _ := s.IssueRefresh("u1", "bob@x.com", "rec-1")

	clock.now = clock.now.Add(16 * time.Minute)
	if _, err := s.VerifyAccess(access); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if _, err := s.VerifyRefresh(refresh); err != nil {
		t.Fatalf("refresh should outlive access: %v", err)
	}

	clock.now = clock.now.Add(7 * 24 * time.Hour)
	if _, err := s.VerifyRefresh(refresh); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired refresh, got %v", err)
	}
}

func TestTamperedAndForeignTokens(t *testing.T) {
	s := newTestSigner(t, nil)
	access, _, _ := s.IssueAccess("u1", "bob@x.com")

	parts := strings.Split(access, ".")
	parts[1] = parts[1] + "x"
	if _, err := s.VerifyAccess(strings.Join(parts, ".")); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("tampered token accepted: %v", err)
	}

	other, err := NewTokenSigner(SignerConfig{
		AccessSecret: "other-access", AccessTTL: time.Minute,
		RefreshSecret: "other-refresh", RefreshTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	if _, err := other.VerifyAccess(access); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("token from another key accepted: %v", err)
	}
	if _, err := s.VerifyAccess(""); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("empty token accepted: %v", err)
	}
}

func TestIssueRefreshRequiresRecordID(t *testing.T) {
	s := newTestSigner(t, nil)
	if _, _, err := s.IssueRefresh("u1", "bob@x.com", " "); err == nil {
		t.Fatal("expected error for empty record id")
	}
}

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer = "flowhq"
	clockSkew     = 5 * time.Second
)

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. TokenID names the ledger
// record that owns the token.
type RefreshClaims struct {
	Email   string `json:"email"`
	TokenID string `json:"tokenId"`
	jwt.RegisteredClaims
}

// SignerConfig configures a TokenSigner. Both secrets and TTLs are required.
type SignerConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	Issuer        string
	Now           func() time.Time
}

// TokenSigner issues and verifies HS256 tokens. Access and refresh tokens
// are signed with separate secrets, so neither class can be forged with the
// other's key.
type TokenSigner struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewTokenSigner validates cfg and returns a signer.
func NewTokenSigner(cfg SignerConfig) (*TokenSigner, error) {
	access := strings.TrimSpace(cfg.AccessSecret)
	refresh := strings.TrimSpace(cfg.RefreshSecret)
	if access == "" || refresh == "" {
		return nil, errors.New("auth: access and refresh secrets are required")
	}
	if access == refresh {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token ttl must be greater than zero")
	}
	s := &TokenSigner{
		accessSecret:  []byte(access),
		refreshSecret: []byte(refresh),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        strings.TrimSpace(cfg.Issuer),
		now:           cfg.Now,
	}
	if s.issuer == "" {
		s.issuer = defaultIssuer
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// IssueAccess signs a short-lived access token for the subject.
func (s *TokenSigner) IssueAccess(userID, email string) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(s.accessTTL)
	claims := AccessClaims{
		Email:            email,
		RegisteredClaims: s.registered(userID, now, exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// IssueRefresh signs a refresh token bound to the ledger record recordID.
func (s *TokenSigner) IssueRefresh(userID, email, recordID string) (string, time.Time, error) {
	if strings.TrimSpace(recordID) == "" {
		return "", time.Time{}, errors.New("auth: refresh record id is required")
	}
	now := s.now().UTC()
	exp := now.Add(s.refreshTTL)
	claims := RefreshClaims{
		Email:            email,
		TokenID:          recordID,
		RegisteredClaims: s.registered(userID, now, exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, exp, nil
}

// VerifyAccess checks signature, issuer and expiry of an access token.
func (s *TokenSigner) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(token, claims, s.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh checks signature, issuer and expiry of a refresh token.
func (s *TokenSigner) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(token, claims, s.refreshSecret); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.TokenID) == "" {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}

func (s *TokenSigner) registered(userID string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
}

func (s *TokenSigner) parse(token string, claims jwt.Claims, secret []byte) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidSignature
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(s.now),
	)
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidSignature
	}
	if !parsed.Valid {
		return ErrInvalidSignature
	}
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return ErrInvalidSignature
	}
	return nil
}

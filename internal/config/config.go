// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvJWTSecret        = "JWT_SECRET"
	EnvJWTExpiresIn     = "JWT_EXPIRES_IN"
	EnvJWTRefresh       = "JWT_REFRESH_SECRET"
	EnvJWTRefreshExpiry = "JWT_REFRESH_EXPIRES_IN"
	EnvPGDSN            = "FLOWHQ_PG_DSN"
)

// Config holds everything cmd/api needs to start.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	DSN         string
	AutoMigrate bool
	FrontendURL string

	JWT         JWT
	HashWorkers int
	DefaultRole string
}

// JWT is the token signing configuration. Every field except Issuer is required.
type JWT struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	Issuer        string
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using getenv. All missing or malformed required
// keys are reported together.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		HTTPAddr:    get("FLOWHQ_HTTP_ADDR", ":4500"),
		GRPCAddr:    get("FLOWHQ_GRPC_ADDR", ":4501"),
		DSN:         get(EnvPGDSN, ""),
		FrontendURL: get("FRONTEND_URL", ""),
		DefaultRole: get("FLOWHQ_DEFAULT_ROLE", "user"),
		JWT: JWT{
			AccessSecret:  get(EnvJWTSecret, ""),
			RefreshSecret: get(EnvJWTRefresh, ""),
			Issuer:        get("FLOWHQ_JWT_ISSUER", "flowhq"),
		},
	}
	if strings.EqualFold(cfg.GRPCAddr, "off") {
		cfg.GRPCAddr = ""
	}

	var errs []error
	if cfg.JWT.AccessSecret == "" {
		errs = append(errs, missing(EnvJWTSecret))
	}
	if cfg.JWT.RefreshSecret == "" {
		errs = append(errs, missing(EnvJWTRefresh))
	}
	if cfg.JWT.AccessSecret != "" && cfg.JWT.AccessSecret == cfg.JWT.RefreshSecret {
		errs = append(errs, fmt.Errorf("config: %s and %s must differ", EnvJWTSecret, EnvJWTRefresh))
	}
	var err error
	if cfg.JWT.AccessTTL, err = requiredTTL(getenv, EnvJWTExpiresIn); err != nil {
		errs = append(errs, err)
	}
	if cfg.JWT.RefreshTTL, err = requiredTTL(getenv, EnvJWTRefreshExpiry); err != nil {
		errs = append(errs, err)
	}
	if raw := get("FLOWHQ_HASH_WORKERS", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("config: FLOWHQ_HASH_WORKERS must be a non-negative integer"))
		}
		cfg.HashWorkers = n
	}
	if raw := get("FLOWHQ_AUTO_MIGRATE", ""); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: FLOWHQ_AUTO_MIGRATE: %w", err))
		}
		cfg.AutoMigrate = b
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// ParseTTL accepts Go durations ("1h30m"), a count with a s/m/h/d/w suffix
// ("7d") or a bare number of seconds ("900").
func ParseTTL(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("empty duration")
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return scaled(n, time.Second)
	}
	units := map[byte]time.Duration{
		'd': 24 * time.Hour,
		'w': 7 * 24 * time.Hour,
	}
	if unit, ok := units[raw[len(raw)-1]]; ok {
		n, err := strconv.ParseInt(raw[:len(raw)-1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		return scaled(n, unit)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return positive(d)
}

// scaled multiplies n by unit, rejecting counts that would overflow.
func scaled(n int64, unit time.Duration) (time.Duration, error) {
	if n > int64(math.MaxInt64/unit) {
		return 0, errors.New("duration is too large")
	}
	return positive(time.Duration(n) * unit)
}

func positive(d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, errors.New("duration must be greater than zero")
	}
	return d, nil
}

func requiredTTL(getenv func(string) string, key string) (time.Duration, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return 0, missing(key)
	}
	d, err := ParseTTL(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func missing(key string) error {
	return fmt.Errorf("config: %s is required", key)
}

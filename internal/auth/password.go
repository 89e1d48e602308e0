package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"flowhq.dev/internal/obs"
)

// DefaultHashCost is the bcrypt work factor used for stored passwords.
const DefaultHashCost = 12

const (
	minPasswordLength = 8
	// bcrypt only looks at the first 72 bytes.
	maxPasswordBytes = 72
)

// validatePassword enforces the length window accepted for new passwords.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordBytes)
	}
	return nil
}

// Hasher runs bcrypt on a bounded number of workers. Callers past the limit
// wait (honouring ctx) instead of competing for CPU with unrelated requests.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted

	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher builds a Hasher. Zero cost selects DefaultHashCost, and
// non-positive workers selects GOMAXPROCS.
func NewHasher(cost, workers int) *Hasher {
	if cost == 0 {
		cost = DefaultHashCost
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(workers))}
}

// Hash hashes plaintext password using bcrypt.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	release, err := h.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return "", err
	}
	return string(hash), nil
}

// Compare reports whether password matches hash. A mismatch or an unusable
// stored hash is reported as false without an error.
func (h *Hasher) Compare(ctx context.Context, hash, password string) (bool, error) {
	release, err := h.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()
	if hash == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// CompareDummy spends the cost of one comparison against a throwaway hash so
// lookups for unknown emails take as long as real ones.
func (h *Hasher) CompareDummy(ctx context.Context, password string) error {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("flowhq-dummy-password"), h.cost)
	})
	_, err := h.Compare(ctx, string(h.dummy), password)
	return err
}

func (h *Hasher) acquire(ctx context.Context) (func(), error) {
	start := time.Now()
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	obs.ObserveHashWait(time.Since(start))
	obs.HashStarted()
	return func() {
		obs.HashFinished()
		h.sem.Release(1)
	}, nil
}

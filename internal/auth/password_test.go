package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasherHashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 2)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "pw12345678")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || cost != bcrypt.MinCost {
		t.Fatalf("unexpected cost %d: %v", cost, err)
	}
	if ok, err := h.Compare(ctx, hash, "pw12345678"); err != nil || !ok {
		t.Fatalf("expected match: %v", err)
	}
	if ok, _ := h.Compare(ctx, hash, "nope"); ok {
		t.Fatal("unexpected match")
	}
	if ok, _ := h.Compare(ctx, "", "pw12345678"); ok {
		t.Fatal("empty hash must not match")
	}
	if _, err := h.Hash(ctx, ""); err == nil {
		t.Fatal("expected error for empty password")
	}
	if err := h.CompareDummy(ctx, "anything"); err != nil {
		t.Fatalf("CompareDummy: %v", err)
	}
}

func TestHasherRejectsOverlongPassword(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 1)
	if _, err := h.Hash(context.Background(), strings.Repeat("x", 73)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := validatePassword(strings.Repeat("x", 72)); err != nil {
		t.Fatalf("72 bytes should be accepted: %v", err)
	}
}

func TestHasherDefaultCost(t *testing.T) {
	if h := NewHasher(0, 0); h.cost != DefaultHashCost {
		t.Fatalf("expected default cost %d, got %d", DefaultHashCost, h.cost)
	}
}

func TestHasherHonoursContextWhenSaturated(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 1)
	release, err := h.acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Hash(ctx, "pw12345678"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

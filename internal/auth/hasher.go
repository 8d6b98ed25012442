// Package auth provides password hashing and bearer-token handling for
// AtendeBot.
package auth

import (
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher hashes passwords with bcrypt. The zero value uses
// bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

// Hash returns the salted bcrypt hash of plaintext.
func (h BcryptHasher) Hash(plaintext string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		slog.Error("BcryptHasher.Hash failed", "error", err)
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Compare reports whether plaintext matches the stored hash. Returns a
// non-nil error on mismatch.
func (h BcryptHasher) Compare(hash, plaintext string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)); err != nil {
		return fmt.Errorf("password mismatch: %w", err)
	}
	return nil
}

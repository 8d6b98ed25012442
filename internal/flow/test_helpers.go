package flow

import (
	"context"
	"fmt"

	"github.com/CompactDigital/AtendeBot/internal/models"
)

// stubHasher is a deterministic PasswordHasher for tests.
type stubHasher struct {
	fail bool
}

func (h stubHasher) Hash(plaintext string) (string, error) {
	if h.fail {
		return "", fmt.Errorf("hasher unavailable")
	}
	return "hashed:" + plaintext, nil
}

// countingUserStore wraps a UserStore and counts collaborator calls.
type countingUserStore struct {
	UserStore
	finds   int
	creates int
}

func (c *countingUserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	c.finds++
	return c.UserStore.FindUserByEmail(ctx, email)
}

func (c *countingUserStore) CreateUser(ctx context.Context, username, email string, phone *string, passwordHash string) (*models.User, error) {
	c.creates++
	return c.UserStore.CreateUser(ctx, username, email, phone, passwordHash)
}

package db

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/identityhub/internal/domain/user"
	"github.com/geocoder89/identityhub/internal/security"
	"github.com/google/uuid"
)

type AdminSeedStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) error
}

type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
}

type AdminSeed struct {
	Email    string
	Password string
	Name     string
}

// EnsureAdminUser creates the configured admin when its email is free. It is
// the only code path that produces RoleAdmin. Returns whether a row was created.
func EnsureAdminUser(ctx context.Context, store AdminSeedStore, hasher PasswordHasher, seed AdminSeed) (bool, error) {
	if seed.Email == "" || seed.Password == "" {
		return false, nil
	}

	_, err := store.GetByEmail(ctx, seed.Email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return false, err
	}

	hash, err := hasher.Hash(ctx, seed.Password)
	if err != nil {
		return false, err
	}

	name := security.SanitizeDisplayName(seed.Name)
	if name == "" {
		name = "Admin User"
	}

	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Email:        seed.Email,
		PasswordHash: hash,
		Name:         name,
		Role:         user.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = store.Create(ctx, u)
	if errors.Is(err, user.ErrEmailTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

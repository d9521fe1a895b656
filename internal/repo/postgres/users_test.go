package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/identityhub/internal/db"
	"github.com/geocoder89/identityhub/internal/domain/user"
	"github.com/geocoder89/identityhub/internal/repo/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupUsersRepo(t *testing.T) *postgres.UsersRepo {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, dsn))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE users`)
	require.NoError(t, err)

	return postgres.NewUsersRepo(pool, nil)
}

func newUser(email string, role user.Role, createdAt time.Time) user.User {
	return user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Name:         "Test",
		Role:         role,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

func TestUsersRepo_CreateAndLookup(t *testing.T) {
	repo := setupUsersRepo(t)
	ctx := context.Background()

	u := newUser("sam@example.com", user.RoleUser, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.GetByEmail(ctx, "sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, user.RoleUser, got.Role)

	err = repo.Create(ctx, newUser("sam@example.com", user.RoleUser, time.Now().UTC()))
	assert.ErrorIs(t, err, user.ErrEmailTaken)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestUsersRepo_ListIsStable(t *testing.T) {
	repo := setupUsersRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		require.NoError(t, repo.Create(ctx, newUser(email, user.RoleUser, base.Add(time.Duration(i)*time.Second))))
	}

	page, total, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "b@example.com", page[0].Email)

	page, _, err = repo.List(ctx, 10, 10)
	require.NoError(t, err)
	assert.NotNil(t, page)
	assert.Empty(t, page)
}

func TestUsersRepo_UpdateKeepsImmutableColumns(t *testing.T) {
	repo := setupUsersRepo(t)
	ctx := context.Background()

	u := newUser("sam@example.com", user.RoleUser, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, u))

	updated, err := repo.Update(ctx, u.ID, func(next *user.User) error {
		next.Name = "Samuel"
		next.Role = user.RoleAdmin
		next.UpdatedAt = time.Now().UTC()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Samuel", updated.Name)
	assert.Equal(t, user.RoleUser, updated.Role)

	stored, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleUser, stored.Role)

	errStop := errors.New("stop")
	_, err = repo.Update(ctx, u.ID, func(*user.User) error { return errStop })
	assert.ErrorIs(t, err, errStop)
}

func TestUsersRepo_DeleteAndCount(t *testing.T) {
	repo := setupUsersRepo(t)
	ctx := context.Background()

	admin := newUser("admin@example.com", user.RoleAdmin, time.Now().UTC())
	sam := newUser("sam@example.com", user.RoleUser, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, admin))
	require.NoError(t, repo.Create(ctx, sam))

	counts, err := repo.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[user.RoleAdmin])
	assert.Equal(t, 1, counts[user.RoleUser])

	require.NoError(t, repo.Delete(ctx, sam.ID))
	assert.ErrorIs(t, repo.Delete(ctx, sam.ID), user.ErrNotFound)
}

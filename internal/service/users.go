// Package service holds the identity operations the HTTP layer calls into:
// login, registration and the user-management endpoints. Every method returns
// an *apperr.Error (or wraps one) so the boundary can map outcomes exhaustively.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/identityhub/internal/apperr"
	"github.com/geocoder89/identityhub/internal/auth"
	"github.com/geocoder89/identityhub/internal/domain/user"
	"github.com/geocoder89/identityhub/internal/security"
	"github.com/google/uuid"
)

// UserStore is the credential store contract. Implementations must serialise
// writes so that concurrent updates to one record cannot be lost.
type UserStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	List(ctx context.Context, offset, limit int) ([]user.User, int, error)
	Create(ctx context.Context, u user.User) error
	// Update applies mutate to the stored record atomically and returns the result.
	Update(ctx context.Context, id string, mutate func(*user.User) error) (user.User, error)
	Delete(ctx context.Context, id string) error
	CountByRole(ctx context.Context) (map[user.Role]int, error)
}

type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, plain, hash string) (bool, error)
	Burn(ctx context.Context, plain string)
}

type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

type UserService struct {
	store  UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	policy security.PasswordPolicy
	log    *slog.Logger
	now    func() time.Time
}

func NewUserService(store UserStore, hasher PasswordHasher, tokens TokenIssuer, policy security.PasswordPolicy, log *slog.Logger) *UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserService{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		policy: policy,
		log:    log,
		now:    time.Now,
	}
}

type LoginResult struct {
	Token string      `json:"token"`
	User  user.Public `json:"user"`
}

// NormalizeEmail is the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login fails with the same InvalidCredentials error for an unknown email and
// for a wrong password.
func (s *UserService) Login(ctx context.Context, req user.LoginRequest) (LoginResult, error) {
	found, err := s.store.GetByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.hasher.Burn(ctx, req.Password)
			return LoginResult{}, apperr.InvalidCredentials()
		}
		return LoginResult{}, apperr.Internal("Could not log in", err)
	}

	ok, err := s.hasher.Verify(ctx, req.Password, found.PasswordHash)
	if err != nil {
		return LoginResult{}, apperr.Internal("Could not log in", err)
	}
	if !ok {
		return LoginResult{}, apperr.InvalidCredentials()
	}

	token, err := s.tokens.Issue(auth.IdentityOf(found))
	if err != nil {
		return LoginResult{}, apperr.Internal("Could not generate access token", err)
	}

	s.log.InfoContext(ctx, "user logged in", "user_id", found.ID)

	return LoginResult{Token: token, User: found.Public()}, nil
}

// Register creates an account with RoleUser. There is no input that selects a role.
func (s *UserService) Register(ctx context.Context, req user.RegisterRequest) (user.Public, error) {
	email := NormalizeEmail(req.Email)

	// a taken handle wins over content errors
	_, err := s.store.GetByEmail(ctx, email)
	if err == nil {
		return user.Public{}, apperr.Conflict("User already exists")
	}
	if !errors.Is(err, user.ErrNotFound) {
		return user.Public{}, apperr.Internal("Could not create user", err)
	}

	name := security.SanitizeDisplayName(req.Name)
	if name == "" {
		return user.Public{}, apperr.FieldValidation("Invalid request body", apperr.FieldError{
			Field: "name", Rule: "required", Message: "is required",
		})
	}

	if violations := s.policy.Check(req.Password); len(violations) > 0 {
		return user.Public{}, weakPassword(violations)
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return user.Public{}, apperr.Internal("Could not create user", err)
	}

	now := s.now().UTC()
	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         user.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.Create(ctx, u)
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return user.Public{}, apperr.Conflict("User already exists")
		}
		return user.Public{}, apperr.Internal("Could not create user", err)
	}

	s.log.InfoContext(ctx, "user registered", "user_id", u.ID)

	return u.Public(), nil
}

// List returns one page of users and the total count. A page past the end is
// an empty slice, not an error.
func (s *UserService) List(ctx context.Context, filter user.ListFilter) ([]user.Public, int, error) {
	filter = filter.Normalize()

	users, total, err := s.store.List(ctx, filter.Offset(), filter.Limit)
	if err != nil {
		return nil, 0, apperr.Internal("Could not list users", err)
	}
	return user.PublicList(users), total, nil
}

func (s *UserService) Get(ctx context.Context, id string) (user.Public, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.Public{}, apperr.NotFound("User not found")
		}
		return user.Public{}, apperr.Internal("Could not fetch user", err)
	}
	return u.Public(), nil
}

// Update changes the whitelisted fields of a user for any authenticated
// caller. A new password is hashed before the record is touched.
func (s *UserService) Update(ctx context.Context, actor *auth.Claims, id string, req user.UpdateRequest) (user.Public, error) {
	if actor == nil {
		return user.Public{}, apperr.Unauthorized("Missing identity context")
	}
	if req.Empty() {
		return user.Public{}, apperr.Validation("No updatable fields supplied", nil)
	}

	var name string
	if req.Name != nil {
		name = security.SanitizeDisplayName(*req.Name)
		if name == "" {
			return user.Public{}, apperr.FieldValidation("Invalid request body", apperr.FieldError{
				Field: "name", Rule: "required", Message: "is required",
			})
		}
	}

	var hash string
	if req.Password != nil {
		if violations := s.policy.Check(*req.Password); len(violations) > 0 {
			return user.Public{}, weakPassword(violations)
		}

		var err error
		hash, err = s.hasher.Hash(ctx, *req.Password)
		if err != nil {
			return user.Public{}, apperr.Internal("Could not update user", err)
		}
	}

	updated, err := s.store.Update(ctx, id, func(u *user.User) error {
		if req.Name != nil {
			u.Name = name
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		u.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.Public{}, apperr.NotFound("User not found")
		}
		return user.Public{}, apperr.Internal("Could not update user", err)
	}

	s.log.InfoContext(ctx, "user updated", "user_id", id, "actor_id", actor.UserID(), "password_changed", hash != "")

	return updated.Public(), nil
}

// Delete removes a user. The caller must be an admin and may not target itself.
func (s *UserService) Delete(ctx context.Context, actor *auth.Claims, id string) error {
	if err := auth.RequireRole(actor, user.RoleAdmin); err != nil {
		return err
	}

	_, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal("Could not delete user", err)
	}

	if actor.UserID() == id {
		return apperr.BadRequest("Cannot delete your own account")
	}

	err = s.store.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal("Could not delete user", err)
	}

	s.log.InfoContext(ctx, "user deleted", "user_id", id, "actor_id", actor.UserID())

	return nil
}

func weakPassword(violations []security.PolicyViolation) *apperr.Error {
	fields := make([]apperr.FieldError, 0, len(violations))
	for _, v := range violations {
		fields = append(fields, apperr.FieldError{Field: "password", Rule: v.Rule, Message: v.Message})
	}
	return apperr.FieldValidation("Weak password", fields...)
}

package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/geocoder89/identityhub/internal/domain/user"
)

// UsersRepo is a volatile credential store. One RWMutex guards every record.
type UsersRepo struct {
	mu      sync.RWMutex
	items   map[string]user.User // id -> user
	byEmail map[string]string    // email -> id
	order   []string             // insertion order, for stable pagination
}

func NewUsersRepo(seed ...user.User) *UsersRepo {
	r := &UsersRepo{
		items:   make(map[string]user.User),
		byEmail: make(map[string]string),
	}
	for _, u := range seed {
		_ = r.Create(context.Background(), u)
	}
	return r
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.items[id], nil
}

func (r *UsersRepo) List(_ context.Context, offset, limit int) ([]user.User, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.order)
	if offset < 0 {
		offset = 0
	}
	if offset >= total || limit <= 0 {
		return []user.User{}, total, nil
	}

	end := offset + limit
	if end > total {
		end = total
	}

	out := make([]user.User, 0, end-offset)
	for _, id := range r.order[offset:end] {
		out = append(out, r.items[id])
	}
	return out, total, nil
}

func (r *UsersRepo) Create(_ context.Context, u user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return user.ErrEmailTaken
	}
	if _, exists := r.items[u.ID]; exists {
		return fmt.Errorf("user id %q already exists", u.ID)
	}

	r.items[u.ID] = u
	r.byEmail[u.Email] = u.ID
	r.order = append(r.order, u.ID)
	return nil
}

// Update runs mutate under the write lock. ID, Email, Role and CreatedAt are
// restored after mutate so this path cannot change them.
func (r *UsersRepo) Update(_ context.Context, id string, mutate func(*user.User) error) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	next := current
	if err := mutate(&next); err != nil {
		return user.User{}, err
	}
	next.ID = current.ID
	next.Email = current.Email
	next.Role = current.Role
	next.CreatedAt = current.CreatedAt

	r.items[id] = next
	return next, nil
}

func (r *UsersRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrNotFound
	}

	delete(r.items, id)
	delete(r.byEmail, u.Email)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *UsersRepo) CountByRole(_ context.Context) (map[user.Role]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[user.Role]int, 2)
	for _, u := range r.items {
		out[u.Role]++
	}
	return out, nil
}

package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"careerlink-auth/internal/model"
)

// InMemoryUserRepository keeps users in process memory. It is used for local
// runs with STORE_DRIVER=memory and by the service and API tests.
type InMemoryUserRepository struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]model.User
	byEmail map[string]uuid.UUID
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:   make(map[uuid.UUID]model.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *InMemoryUserRepository) Create(_ context.Context, user *model.User) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return uuid.Nil, ErrEmailTaken
	}

	stored := *user
	stored.ID = uuid.New()
	r.users[stored.ID] = stored
	r.byEmail[stored.Email] = stored.ID

	return stored.ID, nil
}

func (r *InMemoryUserRepository) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return r.copyOf(id)
}

func (r *InMemoryUserRepository) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.copyOf(id)
}

func (r *InMemoryUserRepository) FindByResetTokenHash(_ context.Context, tokenHash string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, u := range r.users {
		if u.PasswordResetTokenHash != nil && *u.PasswordResetTokenHash == tokenHash {
			return r.copyOf(id)
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryUserRepository) List(_ context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]model.User, 0, len(r.users))
	for id := range r.users {
		u, _ := r.copyOf(id)
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })

	return users, nil
}

func (r *InMemoryUserRepository) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	return r.update(id, func(u *model.User) {
		u.PasswordHash = passwordHash
	})
}

func (r *InMemoryUserRepository) SetResetToken(_ context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return r.update(id, func(u *model.User) {
		u.PasswordResetTokenHash = &tokenHash
		u.PasswordResetExpiresAt = &expiresAt
	})
}

func (r *InMemoryUserRepository) ClearResetToken(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(u *model.User) {
		u.PasswordResetTokenHash = nil
		u.PasswordResetExpiresAt = nil
	})
}

func (r *InMemoryUserRepository) ResetPassword(_ context.Context, id uuid.UUID, tokenHash, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.PasswordResetTokenHash == nil || *u.PasswordResetTokenHash != tokenHash {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordResetTokenHash = nil
	u.PasswordResetExpiresAt = nil
	r.users[id] = u

	return nil
}

func (r *InMemoryUserRepository) update(id uuid.UUID, fn func(u *model.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	fn(&u)
	r.users[id] = u

	return nil
}

// copyOf must be called with the lock held. Pointer fields are cloned so
// callers cannot mutate stored state.
func (r *InMemoryUserRepository) copyOf(id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.PasswordResetTokenHash != nil {
		h := *u.PasswordResetTokenHash
		u.PasswordResetTokenHash = &h
	}
	if u.PasswordResetExpiresAt != nil {
		t := *u.PasswordResetExpiresAt
		u.PasswordResetExpiresAt = &t
	}
	return &u, nil
}

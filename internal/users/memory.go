package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used by tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*User
	email map[string]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[uuid.UUID]*User),
		email: make(map[string]uuid.UUID),
	}
}

func (r *MemoryRepository) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := *user
	r.byID[u.ID] = &u
	r.email[u.Email] = u.ID
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	id, ok := r.email[email]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.email[email]
	return ok, nil
}

func (r *MemoryRepository) ResetUsageIfStale(_ context.Context, id uuid.UUID, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || time.Since(u.LastReset) < window {
		return false, nil
	}
	u.UsageCount = 0
	u.LastReset = time.Now()
	u.UpdatedAt = time.Now()
	return true, nil
}

func (r *MemoryRepository) IncrementUsage(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.UsageCount++
		u.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryRepository) SetTier(_ context.Context, email string, tier Tier, subscriptionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.email[email]
	if !ok {
		return nil
	}
	u := r.byID[id]
	u.Tier = tier
	u.SubscriptionID = &subscriptionID
	u.UpdatedAt = time.Now()
	return nil
}

// SetLastReset backdates a user's reset timestamp. Test helper.
func (r *MemoryRepository) SetLastReset(id uuid.UUID, ts time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.LastReset = ts
	}
}

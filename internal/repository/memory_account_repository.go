package repository

import (
	"context"
	"sync"

	"github.com/spec-kit/paralympics-auth/internal/domain"
)

type memoryAccountRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Account
	byEmail map[string]string
}

// NewMemoryAccountRepository returns a process-local store, used for development and tests.
func NewMemoryAccountRepository() AccountRepository {
	return &memoryAccountRepository{
		byID:    make(map[string]*domain.Account),
		byEmail: make(map[string]string),
	}
}

func (r *memoryAccountRepository) Create(_ context.Context, account *domain.Account) error {
	prepareAccount(account)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[account.ID]; exists {
		return domain.ErrAccountExists
	}
	if _, exists := r.byEmail[account.Email]; exists {
		return domain.ErrEmailTaken
	}
	stored := *account
	r.byID[account.ID] = &stored
	r.byEmail[account.Email] = account.ID
	return nil
}

func (r *memoryAccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	found := *account
	return &found, nil
}

func (r *memoryAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	id, ok := r.byEmail[normalizeEmail(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *memoryAccountRepository) Ping(context.Context) error {
	return nil
}

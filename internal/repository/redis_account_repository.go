package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/paralympics-auth/internal/domain"
)

type redisAccountRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisAccountRepository stores each account as a hash under <prefix>:account:<id>
// with a <prefix>:account_email:<email> index pointing at the id. The index lives in its
// own namespace so no id can address an index key.
func NewRedisAccountRepository(client *redis.Client, prefix string) AccountRepository {
	return &redisAccountRepository{client: client, prefix: prefix}
}

func (r *redisAccountRepository) accountKey(id string) string {
	return fmt.Sprintf("%s:account:%s", r.prefix, id)
}

func (r *redisAccountRepository) emailKey(email string) string {
	return fmt.Sprintf("%s:account_email:%s", r.prefix, email)
}

func (r *redisAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	prepareAccount(account)

	claimed, err := r.client.SetNX(ctx, r.emailKey(account.Email), account.ID, 0).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return domain.ErrEmailTaken
	}

	// The id field is claimed on its own so two creates for the same id cannot both win.
	created, err := r.client.HSetNX(ctx, r.accountKey(account.ID), "id", account.ID).Result()
	if err == nil && !created {
		err = domain.ErrAccountExists
	}
	if err == nil {
		err = r.client.HSet(ctx, r.accountKey(account.ID), map[string]any{
			"name":          account.Name,
			"university":    account.University,
			"email":         account.Email,
			"password_hash": account.PasswordHash,
			"created_at":    account.CreatedAt.UTC().Format(time.RFC3339Nano),
		}).Err()
		if err != nil {
			_ = r.client.Del(ctx, r.accountKey(account.ID)).Err()
		}
	}
	if err != nil {
		// Release the email so a retry can succeed.
		_ = r.client.Del(ctx, r.emailKey(account.Email)).Err()
		return err
	}
	return nil
}

func (r *redisAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	fields, err := r.client.HGetAll(ctx, r.accountKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, domain.ErrAccountNotFound
	}

	account := &domain.Account{
		ID:           fields["id"],
		Name:         fields["name"],
		University:   fields["university"],
		Email:        fields["email"],
		PasswordHash: fields["password_hash"],
	}
	if raw := fields["created_at"]; raw != "" {
		createdAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("account %s: invalid created_at: %w", id, err)
		}
		account.CreatedAt = createdAt
	}
	return account, nil
}

func (r *redisAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	id, err := r.client.Get(ctx, r.emailKey(normalizeEmail(email))).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *redisAccountRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/paralympics-auth/internal/domain"
)

const (
	// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
	uniqueViolation = "23505"
	// accountsPrimaryKey is the default name Postgres gives the accounts id constraint.
	accountsPrimaryKey = "accounts_pkey"
)

// AccountRepository defines persistence access for accounts.
// Lookups return domain.ErrAccountNotFound when nothing matches.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Ping(ctx context.Context) error
}

type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	prepareAccount(account)

	const query = `
        INSERT INTO accounts (id, name, university, email, password_hash, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.Name,
		account.University,
		account.Email,
		account.PasswordHash,
		account.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == accountsPrimaryKey {
			return domain.ErrAccountExists
		}
		return domain.ErrEmailTaken
	}
	return err
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	// Subjects come from tokens; a non-uuid subject cannot match a row.
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrAccountNotFound
	}

	const query = `
        SELECT id, name, university, email, password_hash, created_at
        FROM accounts WHERE id=$1`

	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const query = `
        SELECT id, name, university, email, password_hash, created_at
        FROM accounts WHERE email=$1`

	return r.scanOne(r.pool.QueryRow(ctx, query, normalizeEmail(email)))
}

func (r *accountRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *accountRepository) scanOne(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	if err := row.Scan(
		&account.ID,
		&account.Name,
		&account.University,
		&account.Email,
		&account.PasswordHash,
		&account.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// prepareAccount assigns an id and creation time when missing and normalizes the email.
func prepareAccount(account *domain.Account) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	account.Email = normalizeEmail(account.Email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

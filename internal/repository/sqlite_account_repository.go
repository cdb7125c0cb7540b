package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/spec-kit/paralympics-auth/internal/domain"
)

type sqliteAccountRepository struct {
	db *sql.DB
}

// NewSQLiteAccountRepository returns a database/sql implementation for SQLite.
// The schema is created by persistence.NewSQLite.
func NewSQLiteAccountRepository(db *sql.DB) AccountRepository {
	return &sqliteAccountRepository{db: db}
}

func (r *sqliteAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	prepareAccount(account)

	const query = `
        INSERT INTO accounts (id, name, university, email, password_hash, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Name,
		account.University,
		account.Email,
		account.PasswordHash,
		account.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return mapSQLiteConstraint(err)
}

// mapSQLiteConstraint turns the extended constraint codes of the accounts table into domain errors.
func mapSQLiteConstraint(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return domain.ErrAccountExists
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return domain.ErrEmailTaken
	}
	return err
}

func (r *sqliteAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	const query = `
        SELECT id, name, university, email, password_hash, created_at
        FROM accounts WHERE id = ?`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const query = `
        SELECT id, name, university, email, password_hash, created_at
        FROM accounts WHERE email = ?`

	return r.scanOne(r.db.QueryRowContext(ctx, query, normalizeEmail(email)))
}

func (r *sqliteAccountRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *sqliteAccountRepository) scanOne(row *sql.Row) (*domain.Account, error) {
	var (
		account   domain.Account
		createdAt string
	)
	if err := row.Scan(
		&account.ID,
		&account.Name,
		&account.University,
		&account.Email,
		&account.PasswordHash,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, err
	}
	account.CreatedAt = parsed
	return &account, nil
}

package domain

import (
	"errors"
	"time"
)

// ErrAccountNotFound is returned by account stores when no account matches the lookup.
var ErrAccountNotFound = errors.New("account not found")

// ErrEmailTaken is returned when registering an email that already has an account.
var ErrEmailTaken = errors.New("email already registered")

// ErrAccountExists is returned when creating an account whose id is already stored.
var ErrAccountExists = errors.New("account id already exists")

// Account is the domain model for an API account holder.
type Account struct {
	ID           string
	Name         string
	University   string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

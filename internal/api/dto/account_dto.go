package dto

import (
	"time"

	"github.com/spec-kit/paralympics-auth/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Name       string `json:"name"`
	University string `json:"university"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccountResponse is the public view of an account; the password hash is never exposed.
type AccountResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	University string    `json:"university"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewAuthResponse converts an issued token.
func NewAuthResponse(token domain.IssuedToken) AuthResponse {
	return AuthResponse{Token: token.Value, ExpiresAt: token.ExpiresAt}
}

// NewAccountResponse converts a domain account.
func NewAccountResponse(account *domain.Account) AccountResponse {
	return AccountResponse{
		ID:         account.ID,
		Name:       account.Name,
		University: account.University,
		Email:      account.Email,
		CreatedAt:  account.CreatedAt,
	}
}

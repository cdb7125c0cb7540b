package domain

import "time"

// IssuedToken is a signed access token handed to a client after login.
type IssuedToken struct {
	Value     string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

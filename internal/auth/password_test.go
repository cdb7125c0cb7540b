package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := ComparePassword(hash, "correct horse"); err != nil {
		t.Errorf("ComparePassword() with right password error = %v", err)
	}
	if err := ComparePassword(hash, "battery staple"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("ComparePassword() with wrong password error = %v, want %v", err, ErrInvalidCredentials)
	}
}

func TestHashPasswordOutOfRangeCost(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("pw", 1)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("bcrypt.Cost() error = %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", cost, bcrypt.DefaultCost)
	}
}

func TestPasswordLengthLimit(t *testing.T) {
	t.Parallel()

	tooLong := strings.Repeat("p", MaxPasswordBytes+1)
	if _, err := HashPassword(tooLong, bcrypt.MinCost); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("HashPassword() error = %v, want %v", err, ErrPasswordTooLong)
	}

	hash, err := HashPassword(tooLong[:MaxPasswordBytes], bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword() at the limit error = %v", err)
	}
	if err := ComparePassword(hash, tooLong); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("ComparePassword() with an over-long password error = %v, want %v", err, ErrInvalidCredentials)
	}
}

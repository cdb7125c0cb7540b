package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/paralympics-auth/internal/auth"
	"github.com/spec-kit/paralympics-auth/internal/config"
	"github.com/spec-kit/paralympics-auth/internal/domain"
	"github.com/spec-kit/paralympics-auth/internal/events"
	"github.com/spec-kit/paralympics-auth/internal/repository"
	apperrors "github.com/spec-kit/paralympics-auth/pkg/util"
)

var serviceEpoch = time.Date(2026, time.July, 1, 12, 0, 0, 0, time.UTC)

type serviceFixture struct {
	svc       *AuthService
	accounts  repository.AccountRepository
	validator *auth.TokenValidator
	logs      *observer.ObservedLogs
}

func newServiceFixture(t *testing.T, key *auth.SigningKey) *serviceFixture {
	t.Helper()

	if key == nil {
		var err error
		key, err = auth.NewSigningKey("service-test-secret")
		if err != nil {
			t.Fatalf("NewSigningKey() error = %v", err)
		}
	}
	now := func() time.Time { return serviceEpoch }

	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)
	dispatcher := events.NewInMemoryDispatcher()
	NewAuditService(dispatcher, logger).RegisterHandlers()

	accounts := repository.NewMemoryAccountRepository()
	svc := NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, AuthDependencies{
		Accounts:   accounts,
		Issuer:     auth.NewTokenIssuer(key, auth.WithClock(now)),
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	return &serviceFixture{
		svc:       svc,
		accounts:  accounts,
		validator: auth.NewTokenValidator(key, auth.WithClock(now)),
		logs:      logs,
	}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("error %v is not a DomainError", err)
	}
	return domainErr.HTTPStatus
}

func TestAuthServiceRegister(t *testing.T) {
	t.Parallel()

	t.Run("creates the account and issues a token for it", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t, nil)
		account, token, err := f.svc.Register(context.Background(), RegisterInput{
			Name: "Tanni", University: "Loughborough", Email: "tanni@example.com", Password: "pw",
		})
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if account.ID == "" || account.PasswordHash == "pw" {
			t.Errorf("account = %+v, want an id and a hashed password", account)
		}

		result := f.validator.Validate(token.Value)
		if !result.Valid() || result.Claims.Subject != account.ID {
			t.Errorf("token status = %v subject = %q, want valid for %q", result.Status, result.Claims.Subject, account.ID)
		}
		if f.logs.FilterMessage(string(events.EventAccountRegistered)).Len() != 1 {
			t.Error("account_registered was not audited")
		}
		if f.logs.FilterMessage(string(events.EventTokenIssued)).Len() != 1 {
			t.Error("token_issued was not audited")
		}
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t, nil)
		in := RegisterInput{Email: "dup@example.com", Password: "pw"}
		if _, _, err := f.svc.Register(context.Background(), in); err != nil {
			t.Fatalf("first Register() error = %v", err)
		}
		_, _, err := f.svc.Register(context.Background(), in)
		if got := statusOf(t, err); got != http.StatusConflict {
			t.Errorf("status = %d, want %d", got, http.StatusConflict)
		}
	})

	t.Run("missing or invalid fields are rejected", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t, nil)
		for _, in := range []RegisterInput{
			{Email: "", Password: "pw"},
			{Email: "a@example.com", Password: ""},
			{Email: "not-an-email", Password: "pw"},
		} {
			_, _, err := f.svc.Register(context.Background(), in)
			if got := statusOf(t, err); got != http.StatusBadRequest {
				t.Errorf("Register(%+v) status = %d, want %d", in, got, http.StatusBadRequest)
			}
		}
	})
}

func TestAuthServiceRegisterInputEdges(t *testing.T) {
	t.Parallel()

	t.Run("password over the bcrypt limit is a validation error", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t, nil)
		_, _, err := f.svc.Register(context.Background(), RegisterInput{
			Email: "long@example.com", Password: strings.Repeat("a", auth.MaxPasswordBytes+1),
		})
		if got := statusOf(t, err); got != http.StatusBadRequest {
			t.Errorf("status = %d, want %d (%v)", got, http.StatusBadRequest, err)
		}
		if _, err := f.accounts.GetByEmail(context.Background(), "long@example.com"); !errors.Is(err, domain.ErrAccountNotFound) {
			t.Errorf("GetByEmail() error = %v, want no stored account", err)
		}
	})

	t.Run("password at the bcrypt limit is accepted", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t, nil)
		password := strings.Repeat("a", auth.MaxPasswordBytes)
		if _, _, err := f.svc.Register(context.Background(), RegisterInput{Email: "edge@example.com", Password: password}); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if _, err := f.svc.Login(context.Background(), "edge@example.com", password); err != nil {
			t.Errorf("Login() error = %v", err)
		}
	})

	t.Run("display name is dropped from the stored email", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t, nil)
		account, _, err := f.svc.Register(context.Background(), RegisterInput{
			Name: "Tanni", Email: "Tanni <tanni@example.com>", Password: "pw",
		})
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if account.Email != "tanni@example.com" {
			t.Errorf("Email = %q, want %q", account.Email, "tanni@example.com")
		}
		token, err := f.svc.Login(context.Background(), "tanni@example.com", "pw")
		if err != nil {
			t.Fatalf("Login() with the bare address error = %v", err)
		}
		if token.Subject != account.ID {
			t.Errorf("Subject = %q, want %q", token.Subject, account.ID)
		}
	})
}

func TestAuthServiceLogin(t *testing.T) {
	t.Parallel()

	t.Run("valid credentials yield a token for the account", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t, nil)
		account, _, err := f.svc.Register(context.Background(), RegisterInput{Email: "ok@example.com", Password: "pw"})
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}

		token, err := f.svc.Login(context.Background(), "OK@example.com", "pw")
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if token.Subject != account.ID {
			t.Errorf("Subject = %q, want %q", token.Subject, account.ID)
		}
		if !token.ExpiresAt.Equal(serviceEpoch.Add(auth.TokenTTL)) {
			t.Errorf("ExpiresAt = %v, want %v", token.ExpiresAt, serviceEpoch.Add(auth.TokenTTL))
		}
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t, nil)
		if _, _, err := f.svc.Register(context.Background(), RegisterInput{Email: "ok@example.com", Password: "pw"}); err != nil {
			t.Fatalf("Register() error = %v", err)
		}

		_, wrongPw := f.svc.Login(context.Background(), "ok@example.com", "nope")
		_, unknown := f.svc.Login(context.Background(), "ghost@example.com", "pw")
		if statusOf(t, wrongPw) != http.StatusUnauthorized || statusOf(t, unknown) != http.StatusUnauthorized {
			t.Fatalf("errors = %v / %v, want 401 for both", wrongPw, unknown)
		}
		if wrongPw.Error() != unknown.Error() {
			t.Errorf("messages differ: %q vs %q", wrongPw.Error(), unknown.Error())
		}
		if f.logs.FilterMessage(string(events.EventLoginFailed)).Len() != 2 {
			t.Error("login failures were not audited")
		}
	})

	t.Run("signing failure fails the login without a token", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t, nil)
		if _, _, err := f.svc.Register(context.Background(), RegisterInput{Email: "ok@example.com", Password: "pw"}); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		broken := NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, AuthDependencies{
			Accounts: f.accounts,
			Issuer:   auth.NewTokenIssuer(nil),
		})

		token, err := broken.Login(context.Background(), "ok@example.com", "pw")
		if err == nil {
			t.Fatal("Login() should fail when signing fails")
		}
		if !errors.Is(err, auth.ErrSigningFailure) {
			t.Errorf("error = %v, want it to wrap %v", err, auth.ErrSigningFailure)
		}
		if statusOf(t, err) != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", statusOf(t, err))
		}
		if token.Value != "" {
			t.Errorf("token = %q, want empty", token.Value)
		}
	})
}

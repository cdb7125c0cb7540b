package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/paralympics-auth/internal/domain"
	"github.com/spec-kit/paralympics-auth/internal/observability"
	"github.com/spec-kit/paralympics-auth/internal/repository"
)

// stubAccounts is an AccountLookup that counts lookups.
type stubAccounts struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	err      error
	calls    int
}

func newStubAccounts(ids ...string) *stubAccounts {
	s := &stubAccounts{accounts: make(map[string]*domain.Account)}
	for _, id := range ids {
		s.accounts[id] = &domain.Account{ID: id, Name: "Account " + id, Email: id + "@example.com"}
	}
	return s
}

func (s *stubAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

func (s *stubAccounts) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type gateFixture struct {
	app      *fiber.App
	issuer   *TokenIssuer
	clock    *fakeClock
	accounts *stubAccounts
	metrics  *observability.Metrics
}

func newGateFixture(t *testing.T, accounts *stubAccounts) *gateFixture {
	t.Helper()

	key := newTestKey(t)
	clock := newFakeClock(testEpoch)
	metrics := observability.NewMetrics()
	gate := NewAuthGate(NewTokenValidator(key, WithClock(clock.Now)), accounts, nil, metrics)

	app := fiber.New()
	app.Get("/protected", gate.Handle, func(c *fiber.Ctx) error {
		account, ok := AccountFromContext(c)
		if !ok {
			return c.Status(http.StatusInternalServerError).SendString("no account in context")
		}
		claims, _ := ClaimsFromContext(c)
		return c.JSON(fiber.Map{"status": "ok", "account_id": account.ID, "sub": claims.Subject})
	})

	return &gateFixture{
		app:      app,
		issuer:   NewTokenIssuer(key, WithClock(clock.Now)),
		clock:    clock,
		accounts: accounts,
		metrics:  metrics,
	}
}

func (f *gateFixture) do(t *testing.T, token string, setHeader bool) (int, map[string]string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if setHeader {
		req.Header.Set("Authorization", token)
	}
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("decode body %q: %v", raw, err)
		}
	}
	return resp.StatusCode, body
}

func (f *gateFixture) issue(t *testing.T, accountID string) string {
	t.Helper()
	issued, err := f.issuer.Issue(accountID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return issued.Value
}

func TestAuthGateHandle(t *testing.T) {
	t.Parallel()

	t.Run("missing header is rejected before any store lookup", func(t *testing.T) {
		t.Parallel()

		f := newGateFixture(t, newStubAccounts("42"))
		status, body := f.do(t, "", false)

		if status != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", status, http.StatusUnauthorized)
		}
		if body["message"] != MessageTokenMissing {
			t.Errorf("message = %q, want %q", body["message"], MessageTokenMissing)
		}
		if calls := f.accounts.Calls(); calls != 0 {
			t.Errorf("store lookups = %d, want 0", calls)
		}
		if got := f.metrics.AuthOutcome(OutcomeMissing); got != 1 {
			t.Errorf("missing outcome count = %d, want 1", got)
		}
	})

	t.Run("empty header counts as missing", func(t *testing.T) {
		t.Parallel()

		f := newGateFixture(t, newStubAccounts("42"))
		status, body := f.do(t, "", true)

		if status != http.StatusUnauthorized || body["message"] != MessageTokenMissing {
			t.Errorf("got %d %q, want 401 %q", status, body["message"], MessageTokenMissing)
		}
		if calls := f.accounts.Calls(); calls != 0 {
			t.Errorf("store lookups = %d, want 0", calls)
		}
	})

	t.Run("garbage token is invalid", func(t *testing.T) {
		t.Parallel()

		f := newGateFixture(t, newStubAccounts("42"))
		status, body := f.do(t, "invalid-token-string", true)

		if status != http.StatusUnauthorized || body["message"] != MessageTokenInvalid {
			t.Errorf("got %d %q, want 401 %q", status, body["message"], MessageTokenInvalid)
		}
		if calls := f.accounts.Calls(); calls != 0 {
			t.Errorf("store lookups = %d, want 0", calls)
		}
	})

	t.Run("bearer prefix is not stripped", func(t *testing.T) {
		t.Parallel()

		f := newGateFixture(t, newStubAccounts("42"))
		status, body := f.do(t, "Bearer "+f.issue(t, "42"), true)

		if status != http.StatusUnauthorized || body["message"] != MessageTokenInvalid {
			t.Errorf("got %d %q, want 401 %q", status, body["message"], MessageTokenInvalid)
		}
	})

	t.Run("expired token is rejected with the expiry message", func(t *testing.T) {
		t.Parallel()

		f := newGateFixture(t, newStubAccounts("42"))
		token := f.issue(t, "42")
		f.clock.Advance(5*time.Minute + time.Second)

		status, body := f.do(t, token, true)
		if status != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", status, http.StatusUnauthorized)
		}
		if body["message"] != MessageTokenExpired {
			t.Errorf("message = %q, want %q", body["message"], MessageTokenExpired)
		}
		if calls := f.accounts.Calls(); calls != 0 {
			t.Errorf("store lookups = %d, want 0", calls)
		}
	})

	t.Run("unknown subject is rejected after one lookup", func(t *testing.T) {
		t.Parallel()

		f := newGateFixture(t, newStubAccounts("42"))
		status, body := f.do(t, f.issue(t, "99"), true)

		if status != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", status, http.StatusUnauthorized)
		}
		if body["message"] != MessageUnknownSubject {
			t.Errorf("message = %q, want %q", body["message"], MessageUnknownSubject)
		}
		if calls := f.accounts.Calls(); calls != 1 {
			t.Errorf("store lookups = %d, want 1", calls)
		}
	})

	t.Run("fresh token for a known account reaches the handler", func(t *testing.T) {
		t.Parallel()

		f := newGateFixture(t, newStubAccounts("42"))
		status, body := f.do(t, f.issue(t, "42"), true)

		if status != http.StatusOK {
			t.Fatalf("status = %d, want %d (body %v)", status, http.StatusOK, body)
		}
		if body["status"] != "ok" || body["account_id"] != "42" || body["sub"] != "42" {
			t.Errorf("body = %v, want handler response for account 42", body)
		}
		if calls := f.accounts.Calls(); calls != 1 {
			t.Errorf("store lookups = %d, want 1", calls)
		}
		if got := f.metrics.AuthOutcome(OutcomeAdmitted); got != 1 {
			t.Errorf("admitted outcome count = %d, want 1", got)
		}
	})

	t.Run("each request performs its own lookup", func(t *testing.T) {
		t.Parallel()

		f := newGateFixture(t, newStubAccounts("42"))
		token := f.issue(t, "42")
		for i := 0; i < 3; i++ {
			if status, _ := f.do(t, token, true); status != http.StatusOK {
				t.Fatalf("request %d status = %d, want %d", i, status, http.StatusOK)
			}
		}
		if calls := f.accounts.Calls(); calls != 3 {
			t.Errorf("store lookups = %d, want 3", calls)
		}
	})

	t.Run("store failure is not reported as an auth failure", func(t *testing.T) {
		t.Parallel()

		accounts := newStubAccounts("42")
		accounts.err = errors.New("connection refused")
		f := newGateFixture(t, accounts)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", f.issue(t, "42"))
		resp, err := f.app.Test(req, -1)
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
		}
		if got := f.metrics.AuthOutcome(OutcomeStoreError); got != 1 {
			t.Errorf("store error outcome count = %d, want 1", got)
		}
	})
}

func TestAuthGateEndToEnd(t *testing.T) {
	t.Parallel()

	t.Run("token for 42 presented after 5m1s is expired", func(t *testing.T) {
		t.Parallel()

		f := newGateFixture(t, newStubAccounts("42"))
		token := f.issue(t, "42")
		f.clock.Advance(5*time.Minute + time.Second)

		status, body := f.do(t, token, true)
		if status != http.StatusUnauthorized || body["message"] != "Token expired. Please log in again." {
			t.Fatalf("got %d %v, want 401 expired", status, body)
		}
	})

	t.Run("token for 42 presented immediately runs the wrapped handler", func(t *testing.T) {
		t.Parallel()

		f := newGateFixture(t, newStubAccounts("42"))
		status, body := f.do(t, f.issue(t, "42"), true)
		if status != http.StatusOK || body["status"] != "ok" {
			t.Fatalf("got %d %v, want wrapped handler response", status, body)
		}
	})
}

func TestAccountFromContextEmpty(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		if _, ok := AccountFromContext(c); ok {
			return c.SendStatus(http.StatusTeapot)
		}
		if _, ok := ClaimsFromContext(c); ok {
			return c.SendStatus(http.StatusTeapot)
		}
		return c.SendStatus(http.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestAuthGateRedisStoreRejectsIndexShapedSubject(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	accounts := repository.NewRedisAccountRepository(client, "gate")
	if err := accounts.Create(context.Background(), &domain.Account{Email: "x@y.com", PasswordHash: "hash"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	key := newTestKey(t)
	clock := newFakeClock(testEpoch)
	gate := NewAuthGate(NewTokenValidator(key, WithClock(clock.Now)), accounts, nil, nil)
	app := fiber.New()
	app.Get("/protected", gate.Handle, func(c *fiber.Ctx) error { return c.SendString("ok") })

	issued, err := NewTokenIssuer(key, WithClock(clock.Now)).Issue("email:x@y.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", issued.Value)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized || body["message"] != MessageUnknownSubject {
		t.Errorf("got %d %v, want 401 %q", resp.StatusCode, body, MessageUnknownSubject)
	}
}

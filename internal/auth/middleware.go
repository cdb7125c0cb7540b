package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/paralympics-auth/internal/domain"
	"github.com/spec-kit/paralympics-auth/internal/observability"
	apperrors "github.com/spec-kit/paralympics-auth/pkg/util"
)

// Messages returned in the 401 body when the gate refuses a request.
const (
	MessageTokenMissing   = "Authentication Token missing"
	MessageTokenInvalid   = "Invalid token. Please log in again."
	MessageTokenExpired   = "Token expired. Please log in again."
	MessageUnknownSubject = "Invalid or missing token."
)

// Gate outcomes recorded in metrics.
const (
	OutcomeAdmitted       = "admitted"
	OutcomeMissing        = "missing_credential"
	OutcomeMalformed      = "malformed_token"
	OutcomeExpired        = "expired_token"
	OutcomeUnknownSubject = "unknown_subject"
	OutcomeStoreError     = "store_error"
)

const (
	accountKey = "auth_account"
	claimsKey  = "auth_claims"
)

// AccountLookup resolves a token subject to an account.
// Implementations return domain.ErrAccountNotFound when no account exists.
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
}

// AuthGate admits requests that carry a valid token for an existing account.
type AuthGate struct {
	validator *TokenValidator
	accounts  AccountLookup
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewAuthGate constructs the gate. logger and metrics may be nil.
func NewAuthGate(validator *TokenValidator, accounts AccountLookup, logger *zap.Logger, metrics *observability.Metrics) *AuthGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthGate{validator: validator, accounts: accounts, logger: logger, metrics: metrics}
}

// Handle enforces authentication for protected routes.
// The Authorization header carries the bare token; no scheme prefix is stripped.
func (g *AuthGate) Handle(c *fiber.Ctx) error {
	token := c.Get(fiber.HeaderAuthorization)
	if token == "" {
		return g.reject(c, OutcomeMissing, MessageTokenMissing, nil)
	}

	result := g.validator.Validate(token)
	switch result.Status {
	case TokenValid:
	case TokenExpired:
		return g.reject(c, OutcomeExpired, MessageTokenExpired, result.Err)
	default:
		return g.reject(c, OutcomeMalformed, MessageTokenInvalid, result.Err)
	}

	account, err := g.accounts.GetByID(c.UserContext(), result.Claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return g.reject(c, OutcomeUnknownSubject, MessageUnknownSubject, err)
		}
		g.metrics.RecordAuthOutcome(OutcomeStoreError)
		return apperrors.NewInternalError(err)
	}

	c.Locals(accountKey, account)
	c.Locals(claimsKey, result.Claims)
	g.metrics.RecordAuthOutcome(OutcomeAdmitted)
	return c.Next()
}

func (g *AuthGate) reject(c *fiber.Ctx, outcome, message string, cause error) error {
	g.metrics.RecordAuthOutcome(outcome)
	g.logger.Debug("request rejected by auth gate",
		zap.String("outcome", outcome),
		zap.String("path", c.Path()),
		zap.Error(cause),
	)
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": message})
}

// AccountFromContext retrieves the account resolved by the gate.
func AccountFromContext(c *fiber.Ctx) (*domain.Account, bool) {
	account, ok := c.Locals(accountKey).(*domain.Account)
	return account, ok && account != nil
}

// ClaimsFromContext retrieves the verified token claims.
func ClaimsFromContext(c *fiber.Ctx) (Claims, bool) {
	claims, ok := c.Locals(claimsKey).(Claims)
	return claims, ok
}

package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/paralympics-auth/internal/auth"
	"github.com/spec-kit/paralympics-auth/internal/config"
	"github.com/spec-kit/paralympics-auth/internal/domain"
	"github.com/spec-kit/paralympics-auth/internal/events"
	"github.com/spec-kit/paralympics-auth/internal/repository"
	apperrors "github.com/spec-kit/paralympics-auth/pkg/util"
)

const invalidCredentialsMessage = "invalid email or password"

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Name       string
	University string
	Email      string
	Password   string
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	accounts   repository.AccountRepository
	issuer     *auth.TokenIssuer
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Accounts   repository.AccountRepository
	Issuer     *auth.TokenIssuer
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service. Dispatcher and Logger are optional.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		accounts:   deps.Accounts,
		issuer:     deps.Issuer,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates an account and logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.Account, domain.IssuedToken, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, domain.IssuedToken{}, apperrors.NewValidationError("email and password required", nil)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return nil, domain.IssuedToken{}, apperrors.NewValidationError("invalid email address", map[string]any{"email": email})
	}
	// Only the bare address is stored; login looks accounts up by it.
	email = addr.Address
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, domain.IssuedToken{}, apperrors.NewValidationError(auth.ErrPasswordTooLong.Error(),
			map[string]any{"max_bytes": auth.MaxPasswordBytes})
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, domain.IssuedToken{}, apperrors.NewInternalError(err)
	}

	account := &domain.Account{
		Name:         strings.TrimSpace(in.Name),
		University:   strings.TrimSpace(in.University),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.IssuedToken{}, apperrors.NewConflict("email already registered", nil)
		}
		return nil, domain.IssuedToken{}, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.EventAccountRegistered, account.ID, events.AccountRegisteredPayload{
		Email:      account.Email,
		University: account.University,
	})

	token, err := s.issue(ctx, account.ID)
	if err != nil {
		return nil, domain.IssuedToken{}, err
	}
	return account, token, nil
}

// Login checks the credentials and returns a freshly signed token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.IssuedToken, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return domain.IssuedToken{}, apperrors.NewValidationError("email and password required", nil)
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.publish(ctx, events.EventLoginFailed, "", events.LoginFailedPayload{Email: email, Reason: "unknown_email"})
			return domain.IssuedToken{}, apperrors.NewUnauthorized(invalidCredentialsMessage)
		}
		return domain.IssuedToken{}, apperrors.NewInternalError(err)
	}

	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.publish(ctx, events.EventLoginFailed, account.ID, events.LoginFailedPayload{Email: email, Reason: "wrong_password"})
			return domain.IssuedToken{}, apperrors.NewUnauthorized(invalidCredentialsMessage)
		}
		return domain.IssuedToken{}, apperrors.NewInternalError(err)
	}

	return s.issue(ctx, account.ID)
}

// issue never returns a token together with an error.
func (s *AuthService) issue(ctx context.Context, accountID string) (domain.IssuedToken, error) {
	token, err := s.issuer.Issue(accountID)
	if err != nil {
		s.logger.Error("token issuance failed", zap.String("account_id", accountID), zap.Error(err))
		return domain.IssuedToken{}, apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.EventTokenIssued, accountID, events.TokenIssuedPayload{
		IssuedAt:  token.IssuedAt,
		ExpiresAt: token.ExpiresAt,
	})
	return token, nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, accountID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		AccountID: accountID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

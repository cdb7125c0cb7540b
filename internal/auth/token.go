package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/paralympics-auth/internal/domain"
)

// TokenTTL is the fixed lifetime of every issued token.
const TokenTTL = 5 * time.Minute

var (
	// ErrEmptySigningKey is returned when a signing key is built from an empty secret.
	ErrEmptySigningKey = errors.New("signing key must not be empty")
	// ErrSigningFailure wraps any failure to produce a signed token.
	ErrSigningFailure = errors.New("token signing failed")

	errEmptySubject = errors.New("token has no subject")
)

// SigningKey is the process-wide HMAC secret shared by the issuer and validator.
// It is built once at startup and never mutated.
type SigningKey struct {
	secret []byte
}

// NewSigningKey copies secret into a new key.
func NewSigningKey(secret string) (*SigningKey, error) {
	if secret == "" {
		return nil, ErrEmptySigningKey
	}
	return &SigningKey{secret: []byte(secret)}, nil
}

// Option customizes an issuer or validator.
type Option func(*clock)

type clock struct {
	now func() time.Time
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *clock) {
		if now != nil {
			c.now = now
		}
	}
}

func newClock(opts []Option) clock {
	c := clock{now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// TokenIssuer signs HS256 access tokens for authenticated accounts.
type TokenIssuer struct {
	key   *SigningKey
	clock clock
}

// NewTokenIssuer builds an issuer bound to key.
func NewTokenIssuer(key *SigningKey, opts ...Option) *TokenIssuer {
	return &TokenIssuer{key: key, clock: newClock(opts)}
}

// Issue signs a token whose subject is accountID and which expires TokenTTL after issuance.
// The caller is responsible for having authenticated the account beforehand.
func (i *TokenIssuer) Issue(accountID string) (domain.IssuedToken, error) {
	if i.key == nil || len(i.key.secret) == 0 {
		return domain.IssuedToken{}, fmt.Errorf("%w: %w", ErrSigningFailure, ErrEmptySigningKey)
	}
	if accountID == "" {
		return domain.IssuedToken{}, fmt.Errorf("%w: %w", ErrSigningFailure, errEmptySubject)
	}

	issuedAt := i.clock.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(TokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key.secret)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("%w: %w", ErrSigningFailure, err)
	}
	return domain.IssuedToken{
		Value:     signed,
		Subject:   accountID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Claims is the decoded content of a verified token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ValidationStatus discriminates the outcome of token validation.
// The zero value is TokenMalformed so an unset result never admits a request.
type ValidationStatus int

const (
	TokenMalformed ValidationStatus = iota
	TokenValid
	TokenExpired
)

func (s ValidationStatus) String() string {
	switch s {
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	default:
		return "malformed"
	}
}

// ValidationResult carries the claims of a valid token, or the reason it was refused.
// Claims is only populated when Status is TokenValid.
type ValidationResult struct {
	Status ValidationStatus
	Claims Claims
	Err    error
}

// Valid reports whether the token may be trusted.
func (r ValidationResult) Valid() bool {
	return r.Status == TokenValid
}

// TokenValidator verifies tokens produced by TokenIssuer.
type TokenValidator struct {
	key   *SigningKey
	clock clock
}

// NewTokenValidator builds a validator bound to key.
func NewTokenValidator(key *SigningKey, opts ...Option) *TokenValidator {
	return &TokenValidator{key: key, clock: newClock(opts)}
}

// Validate checks the signature first and the expiry second. A token is expired once the
// current time reaches its exp claim.
func (v *TokenValidator) Validate(tokenStr string) ValidationResult {
	if v.key == nil || len(v.key.secret) == 0 {
		return malformed(ErrEmptySigningKey)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock.now),
	)

	var registered jwt.RegisteredClaims
	_, err := parser.ParseWithClaims(tokenStr, &registered, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key.secret, nil
	})
	if err != nil {
		// Claims are only validated after the signature verifies, so an expiry error
		// implies an authentic token.
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return ValidationResult{Status: TokenExpired, Err: err}
		}
		return malformed(err)
	}
	if registered.Subject == "" {
		return malformed(errEmptySubject)
	}

	claims := Claims{Subject: registered.Subject}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	return ValidationResult{Status: TokenValid, Claims: claims}
}

func malformed(err error) ValidationResult {
	return ValidationResult{Status: TokenMalformed, Err: err}
}

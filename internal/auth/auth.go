// SPDX-License-Identifier: MPL-2.0

// Package auth authenticates accounts and issues signed session tokens.
//
// Passwords are stored as bcrypt hashes. Tokens are HS256 JWTs whose subject
// is the username and whose "role" claim carries the account role at login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fauxterm/fauxterm/internal/clock"
	"github.com/fauxterm/fauxterm/internal/userstore"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultTokenTTL is the lifetime of an issued token.
	DefaultTokenTTL = 24 * time.Hour
	// DefaultIssuer is the "iss" claim of issued tokens.
	DefaultIssuer = "fauxterm"
	// MinPasswordLen is the shortest password accepted for new credentials.
	MinPasswordLen = 4

	minSecretLen = 16
	// bcrypt rejects longer inputs.
	maxPasswordLen = 72
)

var (
	// ErrInvalidCredentials is returned for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidToken is returned when a token is malformed, forged or expired.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrWeakPassword is returned when a new password does not meet the length rules.
	ErrWeakPassword = errors.New("password does not meet requirements")
	// ErrWeakSecret is returned when the signing secret is too short.
	ErrWeakSecret = errors.New("token signing secret is too short")
)

type (
	// Claims identifies the holder of a verified token.
	Claims struct {
		Username  userstore.Username
		Role      userstore.Role
		IssuedAt  time.Time
		ExpiresAt time.Time
	}

	// Config holds the token and hashing parameters.
	Config struct {
		// Secret signs tokens. At least 16 bytes.
		Secret string
		// TokenTTL defaults to DefaultTokenTTL.
		TokenTTL time.Duration
		// Issuer defaults to DefaultIssuer.
		Issuer string
		// BcryptCost defaults to bcrypt.DefaultCost.
		BcryptCost int
	}

	// Option configures a Service.
	Option func(*Service)

	// Service implements login, token verification and account management.
	Service struct {
		users  userstore.Store
		secret []byte
		ttl    time.Duration
		issuer string
		cost   int
		clock  clock.Clock
		logger *slog.Logger

		// dummyHash is compared against when the user does not exist so that
		// both failure paths cost one bcrypt comparison.
		dummyHash []byte
	}

	tokenClaims struct {
		Role string `json:"role"`
		jwt.RegisteredClaims
	}
)

// WithClock replaces the time source used for token timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service over users.
func New(users userstore.Store, cfg Config, opts ...Option) (*Service, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrWeakSecret, minSecretLen)
	}
	s := &Service{
		users:  users,
		secret: []byte(cfg.Secret),
		ttl:    cfg.TokenTTL,
		issuer: cfg.Issuer,
		cost:   cfg.BcryptCost,
		clock:  clock.Real{},
		logger: slog.Default(),
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTokenTTL
	}
	if s.issuer == "" {
		s.issuer = DefaultIssuer
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}
	for _, opt := range opts {
		opt(s)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
	if err != nil {
		return nil, fmt.Errorf("preparing password hasher: %w", err)
	}
	s.dummyHash = dummy
	return s, nil
}

// Login checks the credentials and returns a signed token with its claims.
func (s *Service) Login(ctx context.Context, username, password string) (string, Claims, error) {
	u, err := s.users.FindByUsername(ctx, userstore.Username(username))
	if err != nil {
		if !errors.Is(err, userstore.ErrUserNotFound) {
			return "", Claims{}, fmt.Errorf("login %s: %w", username, err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.logger.Debug("login rejected", "user", username, "reason", "unknown user")
		return "", Claims{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("login rejected", "user", username, "reason", "password mismatch")
		return "", Claims{}, ErrInvalidCredentials
	}

	now := s.clock.Now().Truncate(time.Second)
	claims := Claims{
		Username:  u.Username,
		Role:      u.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	token, err := s.sign(claims)
	if err != nil {
		return "", Claims{}, err
	}
	s.logger.Info("login", "user", u.Username, "role", u.Role)
	return token, claims, nil
}

// Verify checks a token's signature, algorithm, issuer and expiry.
func (s *Service) Verify(token string) (Claims, error) {
	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	role := userstore.Role(tc.Role)
	if err := role.Validate(); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if tc.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	c := Claims{Username: userstore.Username(tc.Subject), Role: role}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}

// Authenticate verifies token and checks it against the account store: a
// token for a deleted account, or one whose role no longer matches, is
// rejected with ErrInvalidToken.
func (s *Service) Authenticate(ctx context.Context, token string) (Claims, error) {
	c, err := s.Verify(token)
	if err != nil {
		return Claims{}, err
	}
	u, err := s.Lookup(ctx, c.Username.String())
	switch {
	case errors.Is(err, userstore.ErrUserNotFound):
		return Claims{}, fmt.Errorf("%w: account %s no longer exists", ErrInvalidToken, c.Username)
	case err != nil:
		return Claims{}, err
	case u.Role != c.Role:
		return Claims{}, fmt.Errorf("%w: role of %s changed", ErrInvalidToken, c.Username)
	}
	return c, nil
}

// Register creates an account with a freshly hashed password.
func (s *Service) Register(ctx context.Context, username, password string, role userstore.Role) error {
	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}
	u := &userstore.User{Username: userstore.Username(username), PasswordHash: hash, Role: role}
	if err := s.users.Insert(ctx, u); err != nil {
		return err
	}
	s.logger.Info("user registered", "user", username, "role", role)
	return nil
}

// ChangePassword replaces the password of an existing account.
func (s *Service) ChangePassword(ctx context.Context, username, password string) error {
	u, err := s.users.FindByUsername(ctx, userstore.Username(username))
	if err != nil {
		return err
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return s.users.Update(ctx, u)
}

// DeleteUser removes an account.
func (s *Service) DeleteUser(ctx context.Context, username string) error {
	return s.users.Delete(ctx, userstore.Username(username))
}

// Users lists every account.
func (s *Service) Users(ctx context.Context) ([]userstore.User, error) {
	return s.users.List(ctx)
}

// Lookup returns a single account.
func (s *Service) Lookup(ctx context.Context, username string) (*userstore.User, error) {
	return s.users.FindByUsername(ctx, userstore.Username(username))
}

// EnsureAdmin creates username as an admin unless any admin already exists.
// It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if u.Role.IsAdmin() {
			return false, nil
		}
	}
	if err := s.Register(ctx, username, password, userstore.RoleAdmin); err != nil {
		return false, fmt.Errorf("bootstrapping admin %s: %w", username, err)
	}
	return true, nil
}

// HashPassword validates and hashes a new password.
func (s *Service) HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLen {
		return "", fmt.Errorf("%w: at least %d characters", ErrWeakPassword, MinPasswordLen)
	}
	if len(password) > maxPasswordLen {
		return "", fmt.Errorf("%w: at most %d bytes", ErrWeakPassword, maxPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) sign(c Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Role: string(c.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(c.Username),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

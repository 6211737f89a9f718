package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/floodwatch/platform/internal/domain"
	"github.com/floodwatch/platform/internal/repository"
	"github.com/floodwatch/platform/pkg/config"
	"github.com/floodwatch/platform/pkg/crypto"
	"github.com/floodwatch/platform/pkg/token"
)

const minPasswordLength = 8

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// login failures cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrEmailTaken signals a registration collision.
	ErrEmailTaken = errors.New("auth: email already registered")
	// ErrUnauthenticated signals a missing, tampered or expired session token.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
)

// ValidationError describes malformed registration or login input. The
// message is safe to return to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("auth: invalid %s: %s", e.Field, e.Reason)
}

// Service handles authentication workflows.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

// SessionTTL exposes the configured token lifetime for cookie expiry.
func (s Service) SessionTTL() time.Duration {
	return s.cfg.SessionTTL
}

// Register validates input, hashes the password and persists a new user.
func (s Service) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.users.CreateUser(storeCtx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, storeFailure(err)
	}
	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// Login verifies credentials and mints a session token. Unknown email and
// wrong password both return ErrInvalidCredentials; a dummy hash comparison
// keeps the two paths close in timing.
func (s Service) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = normalizeEmail(email)
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	user, err := s.users.GetUserByEmail(storeCtx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			crypto.VerifyPassword(dummyHash, password)
			s.logger.Warn("login failed", "email", email, "reason", "unknown email")
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", storeFailure(err)
	}
	if !crypto.VerifyPassword(user.PasswordHash, password) {
		s.logger.Warn("login failed", "email", email, "reason", "password mismatch")
		return nil, "", ErrInvalidCredentials
	}
	session, err := token.Issue(user.ID, s.cfg.JWTSecret, s.cfg.SessionTTL)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, session, nil
}

// Authorize validates a session token and resolves it to a user. Expired and
// tampered tokens are logged apart but both surface as ErrUnauthenticated.
func (s Service) Authorize(ctx context.Context, raw string) (*domain.User, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := token.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			s.logger.Warn("session rejected", "reason", "token expired")
		} else {
			s.logger.Warn("session rejected", "reason", "token invalid")
		}
		return nil, ErrUnauthenticated
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	user, err := s.users.GetUserByID(storeCtx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("session rejected", "reason", "user gone", "user_id", claims.UserID)
			return nil, ErrUnauthenticated
		}
		return nil, storeFailure(err)
	}
	return user, nil
}

func (s Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.StorageTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Reason: "is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &ValidationError{Field: "email", Reason: "is not a valid address"}
	}
	return nil
}

func storeFailure(err error) error {
	if errors.Is(err, repository.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", repository.ErrUnavailable, err)
}

// dummyHash is compared against when the email is unknown so the miss path
// still pays a bcrypt verification.
var dummyHash = func() []byte {
	h, err := crypto.HashPassword("floodwatch-dummy-password")
	if err != nil {
		panic(err)
	}
	return h
}()

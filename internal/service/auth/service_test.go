package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/floodwatch/platform/internal/domain"
	"github.com/floodwatch/platform/internal/repository"
	"github.com/floodwatch/platform/pkg/config"
	"github.com/floodwatch/platform/pkg/token"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.APIConfig {
	return config.APIConfig{
		JWTSecret:      "auth-service-test-secret",
		SessionTTL:     time.Hour,
		StorageTimeout: time.Second,
	}
}

type userRepoStub struct {
	createFunc     func(ctx context.Context, user *domain.User) error
	getByEmailFunc func(ctx context.Context, email string) (*domain.User, error)
	getByIDFunc    func(ctx context.Context, id string) (*domain.User, error)
}

func (s *userRepoStub) CreateUser(ctx context.Context, user *domain.User) error {
	if s.createFunc == nil {
		return nil
	}
	return s.createFunc(ctx, user)
}

func (s *userRepoStub) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if s.getByEmailFunc == nil {
		return nil, repository.ErrNotFound
	}
	return s.getByEmailFunc(ctx, email)
}

func (s *userRepoStub) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if s.getByIDFunc == nil {
		return nil, repository.ErrNotFound
	}
	return s.getByIDFunc(ctx, id)
}

// memoryUserRepo backs full register/login round-trips.
type memoryUserRepo struct {
	byEmail map[string]*domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{byEmail: make(map[string]*domain.User)}
}

func (m *memoryUserRepo) CreateUser(_ context.Context, user *domain.User) error {
	if _, ok := m.byEmail[user.Email]; ok {
		return repository.ErrDuplicate
	}
	clone := *user
	m.byEmail[user.Email] = &clone
	return nil
}

func (m *memoryUserRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	if user, ok := m.byEmail[email]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUserRepo) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	for _, user := range m.byEmail {
		if user.ID == id {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func TestRegisterPersistsHashedPassword(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := New(repo, newLogger(), testConfig())

	user, err := svc.Register(context.Background(), " Alice@Example.com ", "Pass1234", "Alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.ID == "" {
		t.Fatalf("expected assigned identity")
	}
	stored := repo.byEmail["alice@example.com"]
	if stored == nil {
		t.Fatalf("expected user persisted")
	}
	if len(stored.PasswordHash) == 0 || string(stored.PasswordHash) == "Pass1234" {
		t.Fatalf("password must be stored as a non-empty hash")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := New(repo, newLogger(), testConfig())

	if _, err := svc.Register(context.Background(), "alice@example.com", "Pass1234", ""); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if _, err := svc.Register(context.Background(), "alice@example.com", "OtherPass1", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if len(repo.byEmail) != 1 {
		t.Fatalf("expected a single stored record, got %d", len(repo.byEmail))
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := New(newMemoryUserRepo(), newLogger(), testConfig())
	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"missing email", "", "Pass1234"},
		{"malformed email", "not-an-address", "Pass1234"},
		{"short password", "alice@example.com", "short"},
	}
	for _, tc := range cases {
		_, err := svc.Register(context.Background(), tc.email, tc.password, "")
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected ValidationError, got %v", tc.name, err)
		}
	}
}

func TestLoginRoundTrip(t *testing.T) {
	repo := newMemoryUserRepo()
	cfg := testConfig()
	svc := New(repo, newLogger(), cfg)

	registered, err := svc.Register(context.Background(), "alice@example.com", "Pass1234", "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	user, session, err := svc.Login(context.Background(), "alice@example.com", "Pass1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != registered.ID {
		t.Fatalf("unexpected user id: %q", user.ID)
	}

	claims, err := token.Parse(session, cfg.JWTSecret)
	if err != nil {
		t.Fatalf("issued token must parse: %v", err)
	}
	if claims.UserID != registered.ID {
		t.Fatalf("token bound to wrong identity: %q", claims.UserID)
	}

	authorized, err := svc.Authorize(context.Background(), session)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if authorized.ID != registered.ID {
		t.Fatalf("authorize resolved wrong user: %q", authorized.ID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := New(repo, newLogger(), testConfig())
	if _, err := svc.Register(context.Background(), "alice@example.com", "Pass1234", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "alice@example.com", "WrongPass1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownEmailMatchesWrongPassword(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := New(repo, newLogger(), testConfig())
	if _, err := svc.Register(context.Background(), "alice@example.com", "Pass1234", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, _, unknownErr := svc.Login(context.Background(), "nobody@example.com", "anything")
	_, _, wrongErr := svc.Login(context.Background(), "alice@example.com", "WrongPass1")
	if !errors.Is(unknownErr, ErrInvalidCredentials) || !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("expected identical ErrInvalidCredentials, got %v / %v", unknownErr, wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("failure messages must not distinguish the two cases")
	}
}

func TestAuthorizeRejectsExpiredToken(t *testing.T) {
	cfg := testConfig()
	svc := New(&userRepoStub{}, newLogger(), cfg)
	expired, err := token.Issue("user-1", cfg.JWTSecret, -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Authorize(context.Background(), expired); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthorizeRejectsEmptyAndGarbageTokens(t *testing.T) {
	svc := New(&userRepoStub{}, newLogger(), testConfig())
	for _, raw := range []string{"", "  ", "garbage-token"} {
		if _, err := svc.Authorize(context.Background(), raw); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated for %q, got %v", raw, err)
		}
	}
}

func TestAuthorizeRejectsDeletedUser(t *testing.T) {
	cfg := testConfig()
	svc := New(&userRepoStub{
		getByIDFunc: func(_ context.Context, id string) (*domain.User, error) {
			return nil, repository.ErrNotFound
		},
	}, newLogger(), cfg)
	session, err := token.Issue("user-gone", cfg.JWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Authorize(context.Background(), session); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestStoreFailureSurfacesUnavailable(t *testing.T) {
	svc := New(&userRepoStub{
		getByEmailFunc: func(_ context.Context, _ string) (*domain.User, error) {
			return nil, repository.ErrUnavailable
		},
	}, newLogger(), testConfig())
	if _, _, err := svc.Login(context.Background(), "alice@example.com", "Pass1234"); !errors.Is(err, repository.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

// Package auth seeds the admin account and issues opaque session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/renewpackages/renewapi/pkg/storage"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	DefaultTokenTTL = 7 * 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type Store interface {
	ReplaceUser(ctx context.Context, u storage.User) (storage.User, error)
	GetUserByUsername(ctx context.Context, username string) (storage.User, error)
	GetUserByID(ctx context.Context, id int64) (storage.User, error)
	CreateSession(ctx context.Context, s storage.Session) error
	GetSession(ctx context.Context, token string) (storage.Session, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type Logger interface {
	Infof(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

// User is the public view of an account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

func publicUser(u storage.User) User {
	return User{ID: u.ID, Username: u.Username, Role: u.Role}
}

type Service struct {
	store Store
	log   Logger
	ttl   time.Duration
	now   func() time.Time
	cost  int
}

type Option func(*Service)

func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithTokenTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHashCost sets the bcrypt cost used when seeding.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   nopLogger{},
		ttl:   DefaultTokenTTL,
		now:   time.Now,
		cost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SeedAdmin recreates the admin account with the given password. Existing
// sessions of that account are dropped.
func (s *Service) SeedAdmin(ctx context.Context, username, password string) (User, error) {
	if username == "" || password == "" {
		return User{}, errors.New("admin username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash admin password: %w", err)
	}
	u, err := s.store.ReplaceUser(ctx, storage.User{Username: username, PasswordHash: string(hash), Role: RoleAdmin})
	if err != nil {
		return User{}, fmt.Errorf("seed admin: %w", err)
	}
	s.log.Infof("Admin account %q ready", username)
	return publicUser(u), nil
}

// Login checks the password and issues a new token.
func (s *Service) Login(ctx context.Context, username, password string) (string, User, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return "", User{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", User{}, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", User{}, ErrInvalidCredentials
	}

	now := s.now()
	if n, err := s.store.DeleteExpiredSessions(ctx, now); err == nil && n > 0 {
		s.log.Debugf("Pruned %d expired sessions", n)
	}

	token := uuid.NewString()
	if err := s.store.CreateSession(ctx, storage.Session{Token: token, UserID: u.ID, ExpiresAt: now.Add(s.ttl)}); err != nil {
		return "", User{}, fmt.Errorf("create session: %w", err)
	}
	s.log.Infof("User %q logged in", u.Username)
	return token, publicUser(u), nil
}

// Authenticate resolves a token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrInvalidToken
	}
	sess, err := s.store.GetSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return User{}, ErrInvalidToken
	}
	if err != nil {
		return User{}, fmt.Errorf("load session: %w", err)
	}
	if !s.now().Before(sess.ExpiresAt) {
		return User{}, ErrInvalidToken
	}
	u, err := s.store.GetUserByID(ctx, sess.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return User{}, ErrInvalidToken
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	return publicUser(u), nil
}

// ABOUTME: Auth service: signup, login, session tokens and user lookup
// ABOUTME: The coordination engine resolves identities through GetUser

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/2389/huddle-gateway/internal/store"
)

// Service errors
var (
	ErrUnknownUser        = errors.New("unknown user")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidUsername    = errors.New("username must be 1-32 letters, digits, '.', '_' or '-'")
	ErrEmptyPassword      = errors.New("password must not be empty")
	ErrInvalidRole        = errors.New("role must be student or staff")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,32}$`)

// UserStore is the persistence the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *store.User) error
	GetUser(ctx context.Context, username string) (*store.User, error)
	UpdatePassword(ctx context.Context, username, passwordHash, salt string) error
	SetMuted(ctx context.Context, username string, muted bool) error
}

// Options tunes credential hashing and session lifetime.
type Options struct {
	Iterations int
	SessionTTL time.Duration
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *store.User
}

// Service verifies credentials and issues session identities.
type Service struct {
	users      UserStore
	tokens     *JWTVerifier
	iterations int
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewService creates an auth service.
func NewService(users UserStore, tokens *JWTVerifier, opts Options, logger *slog.Logger) *Service {
	if opts.Iterations <= 0 {
		opts.Iterations = 100000
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &Service{
		users:      users,
		tokens:     tokens,
		iterations: opts.Iterations,
		sessionTTL: opts.SessionTTL,
		logger:     logger.With("component", "auth"),
	}
}

// Register creates a new account with a fresh salt.
func (s *Service) Register(ctx context.Context, username, password string, role store.Role) (*store.User, error) {
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if role == "" {
		role = store.RoleStudent
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}

	user := &store.User{
		Username:     username,
		PasswordHash: HashPassword(password, salt, s.iterations),
		Salt:         salt,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered", "username", username, "role", role)
	return user, nil
}

// Login verifies credentials and issues a session token.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if !CheckPassword(password, user.Salt, user.PasswordHash, s.iterations) {
		s.logger.Warn("login failed", "username", username)
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.IssueToken(username)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "username", username)
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// IssueToken signs a session token for username.
func (s *Service) IssueToken(username string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.sessionTTL).UTC()
	token, err := s.tokens.Generate(username, s.sessionTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return token, expiresAt, nil
}

// Authenticate verifies a session token and loads its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*store.User, error) {
	username, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, username)
}

// GetUser returns the user or ErrUnknownUser.
func (s *Service) GetUser(ctx context.Context, username string) (*store.User, error) {
	user, err := s.users.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", username, err)
	}
	return user, nil
}

// ChangePassword replaces the credential after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, username, current, next string) error {
	if next == "" {
		return ErrEmptyPassword
	}
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if !CheckPassword(current, user.Salt, user.PasswordHash, s.iterations) {
		return ErrInvalidCredentials
	}

	salt, err := NewSalt()
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, username, HashPassword(next, salt, s.iterations), salt); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	s.logger.Info("password changed", "username", username)
	return nil
}

// SetMuted sets the user's mute flag.
func (s *Service) SetMuted(ctx context.Context, username string, muted bool) error {
	err := s.users.SetMuted(ctx, username, muted)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnknownUser
	}
	if err != nil {
		return fmt.Errorf("setting muted: %w", err)
	}

	s.logger.Info("mute flag changed", "username", username, "muted", muted)
	return nil
}

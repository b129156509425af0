package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/log"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// User is a registered account as stored by the persistence layer.
type User struct {
	ID           int64
	Email        string
	DisplayName  string
	PasswordHash []byte
}

// UserStore is the persistence surface the service needs for accounts.
type UserStore interface {
	CreateUser(ctx context.Context, email, displayName string, passwordHash []byte) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// Service handles account registration and sign-in, and tracks each
// user's session gate. Gate transitions fan out to subscribers.
type Service struct {
	users  UserStore
	tokens *TokenManager
	logger *log.Logger

	mu    sync.Mutex
	gates map[int64]*Gate
	subs  []chan Change
}

func NewService(users UserStore, tokens *TokenManager, logger *log.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		logger: logger.WithComponent("identity"),
		gates:  make(map[int64]*Gate),
	}
}

// SignUp registers a new account. The caller still has to sign in; a
// successful registration does not create a session.
func (s *Service) SignUp(ctx context.Context, email, displayName, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") || len(email) < 3 {
		return ErrInvalidEmail
	}
	if len(password) < 8 {
		return ErrWeakPassword
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = email[:strings.Index(email, "@")]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	id, err := s.users.CreateUser(ctx, email, displayName, hash)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", id, "email", email)
	return nil
}

// SignIn authenticates a user and opens their session gate. While the
// credentials are being verified the gate reports authenticating; a
// second concurrent attempt for the same user fails with ErrGateBusy.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}

	gate := s.gateFor(user.ID)
	if err := gate.Begin(); err != nil {
		return Session{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		gate.Fail()
		return Session{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Mint(user)
	if err != nil {
		gate.Fail()
		return Session{}, err
	}

	session := Session{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Token:       token,
		ExpiresAt:   expiresAt,
	}
	gate.Complete(session)

	s.logger.InfoContext(ctx, "user signed in", "user_id", user.ID)
	return session, nil
}

// CurrentSession resolves a bearer token to its session.
func (s *Service) CurrentSession(token string) (Session, error) {
	return s.tokens.Parse(token)
}

// SignOut closes the gate for the token's user. An invalid token is
// reported; signing out an already signed-out user is a no-op.
func (s *Service) SignOut(token string) error {
	session, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}
	s.gateFor(session.UserID).SignOut()
	s.logger.Info("user signed out", "user_id", session.UserID)
	return nil
}

// GateState reports the session gate state for a user.
func (s *Service) GateState(userID int64) State {
	return s.gateFor(userID).State()
}

// Subscribe returns a channel of gate transitions. Slow subscribers
// lose events rather than block sign-in.
func (s *Service) Subscribe() <-chan Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Change, 16)
	s.subs = append(s.subs, ch)
	return ch
}

func (s *Service) gateFor(userID int64) *Gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate, ok := s.gates[userID]
	if !ok {
		gate = NewGate(userID, s.broadcast)
		s.gates[userID] = gate
	}
	return gate
}

func (s *Service) broadcast(c Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// Package account manages the signed-in user.
//
// The user object returned by the server is kept opaque; only its username
// is read for display.
package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// KeyUser is the storage key of the signed-in user.
const KeyUser = "user"

// ErrNotLoggedIn is returned by operations that need a signed-in user.
var ErrNotLoggedIn = errors.New("not logged in")

// Registration is the sign-up payload.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

// Authenticator is the remote account API.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (json.RawMessage, error)
	Register(ctx context.Context, req Registration) (string, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, email, otp, newPassword string) (string, error)
}

// Store persists JSON-encodable values by key.
type Store interface {
	Get(key string, v any) (bool, error)
	Set(key string, v any) error
	Delete(keys ...string) error
}

// Clearer drops per-user local data on logout.
type Clearer interface {
	Clear() error
}

// Service tracks the signed-in user and persists it.
type Service struct {
	mu    sync.RWMutex
	auth  Authenticator
	store Store
	local Clearer
	user  json.RawMessage
}

// NewService creates an account service. local is cleared on logout and may
// be nil.
func NewService(auth Authenticator, store Store, local Clearer) *Service {
	return &Service{
		auth:  auth,
		store: store,
		local: local,
	}
}

// Load restores the signed-in user from the store.
func (s *Service) Load() error {
	var user json.RawMessage
	found, err := s.store.Get(KeyUser, &user)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if found && !isNull(user) {
		s.user = user
		log.Info().Str("user", displayName(user)).Msg("Restored signed-in user")
	}
	return nil
}

// Login authenticates and persists the returned user.
func (s *Service) Login(ctx context.Context, email, password string) error {
	user, err := s.auth.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Login failed")
		return fmt.Errorf("login: %w", err)
	}
	if isNull(user) {
		return fmt.Errorf("login: empty user")
	}

	if err := s.store.Set(KeyUser, user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	log.Info().Str("user", displayName(user)).Msg("Logged in")
	return nil
}

// Register creates an account and returns the server message. It does not
// sign the user in.
func (s *Service) Register(ctx context.Context, req Registration) (string, error) {
	msg, err := s.auth.Register(ctx, req)
	if err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	log.Info().Str("username", req.Username).Msg("Registered")
	return msg, nil
}

// ForgotPassword requests a one-time reset code for email.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	msg, err := s.auth.ForgotPassword(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", fmt.Errorf("forgot password: %w", err)
	}
	return msg, nil
}

// ResetPassword sets a new password using the one-time code.
func (s *Service) ResetPassword(ctx context.Context, email, otp, newPassword string) (string, error) {
	msg, err := s.auth.ResetPassword(ctx, strings.TrimSpace(email), strings.TrimSpace(otp), newPassword)
	if err != nil {
		return "", fmt.Errorf("reset password: %w", err)
	}
	return msg, nil
}

// Logout forgets the user and clears the user's local data. Playback is not
// affected.
func (s *Service) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(KeyUser); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.user = nil

	if s.local != nil {
		if err := s.local.Clear(); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
	}

	log.Info().Msg("Logged out")
	return nil
}

// LoggedIn reports whether a user is signed in.
func (s *Service) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// CurrentUser returns a copy of the user object, or nil.
func (s *Service) CurrentUser() json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	return append(json.RawMessage(nil), s.user...)
}

// DisplayName returns the user's username, or "" when unknown.
func (s *Service) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return displayName(s.user)
}

// SaveSettings persists the user again. A non-empty username replaces the
// stored one when the user is a JSON object.
func (s *Service) SaveSettings(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return ErrNotLoggedIn
	}

	user := s.user
	if username = strings.TrimSpace(username); username != "" {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(user, &fields); err == nil && fields != nil {
			name, _ := json.Marshal(username)
			fields["username"] = name
			if updated, err := json.Marshal(fields); err == nil {
				user = updated
			}
		}
	}

	if err := s.store.Set(KeyUser, user); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	s.user = user

	log.Info().Str("user", displayName(user)).Msg("Settings saved")
	return nil
}

func displayName(user json.RawMessage) string {
	if len(user) == 0 {
		return ""
	}
	var v struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(user, &v); err != nil {
		return ""
	}
	return v.Username
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

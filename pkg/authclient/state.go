package authclient

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// genericErrorMessage is shown when the server gave us nothing usable.
const genericErrorMessage = "Something went wrong. Please try again."

// AuthState is the thin session-state store a UI binds to: the current
// user, a loading flag, and the last user-visible error. It is mutated only
// by the outcomes of its own operations, never directly by callers.
type AuthState struct {
	client *Client
	log    *slog.Logger

	mu      sync.RWMutex
	user    *User
	loading bool
	lastErr string
}

// NewAuthState creates an AuthState bound to client.
func NewAuthState(client *Client) *AuthState {
	return &AuthState{
		client:  client,
		log:     client.log,
		loading: true, // until the first CheckStatus settles
	}
}

// User returns the current user, or nil when signed out.
func (s *AuthState) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Loading reports whether an auth operation is in flight.
func (s *AuthState) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the last user-visible error message, "" when none.
func (s *AuthState) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// CheckStatus fetches the current identity, typically once at startup.
// Any failure (including an exhausted refresh) signs the user out locally.
// The loading flag is always cleared, whatever happens.
func (s *AuthState) CheckStatus(ctx context.Context) {
	s.setLoading(true)
	defer s.setLoading(false)

	user, err := s.client.Me(ctx)
	if err != nil {
		s.set(nil, messageFrom(err))
		return
	}
	s.set(user, "")
}

// Login authenticates and populates the user on success. On failure the
// server's message (or a generic fallback) lands in Err and the error is
// returned so the caller can react too.
func (s *AuthState) Login(ctx context.Context, email, password string) error {
	s.setLoading(true)
	defer s.setLoading(false)

	user, err := s.client.Login(ctx, email, password)
	if err != nil {
		s.set(nil, messageFrom(err))
		return err
	}

	s.set(user, "")
	return nil
}

// Register creates an account. Success clears the error but does not log
// the new user in.
func (s *AuthState) Register(ctx context.Context, email, password, name string) error {
	s.setLoading(true)
	defer s.setLoading(false)

	if err := s.client.Register(ctx, email, password, name); err != nil {
		s.setError(messageFrom(err))
		return err
	}

	s.setError("")
	return nil
}

// Logout notifies the server on a best-effort basis; a failure is logged,
// not surfaced. Local state is cleared and the user is sent to the login
// entry point no matter what the network does.
func (s *AuthState) Logout(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.user = nil
		s.lastErr = ""
		s.loading = false
		s.mu.Unlock()

		if s.client.nav != nil {
			s.client.nav.NavigateTo(s.client.coord.loginPath)
		}
	}()

	if err := s.client.Logout(ctx); err != nil {
		s.log.Warn("logout request failed", "err", err)
	}
}

func (s *AuthState) set(user *User, errMsg string) {
	s.mu.Lock()
	s.user = user
	s.lastErr = errMsg
	s.mu.Unlock()
}

func (s *AuthState) setError(errMsg string) {
	s.mu.Lock()
	s.lastErr = errMsg
	s.mu.Unlock()
}

func (s *AuthState) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// messageFrom extracts a user-visible message from an SDK error.
func messageFrom(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return genericErrorMessage
}

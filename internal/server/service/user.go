package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sessionkit/sessiond/internal/server/domain"
	"github.com/sessionkit/sessiond/internal/server/store"
	"github.com/sessionkit/sessiond/pkg/cryptox"
	"github.com/sessionkit/sessiond/pkg/idx"
	"github.com/sessionkit/sessiond/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrDuplicateAccount   = errors.New("duplicate_account")
)

type UserService struct {
	Store store.Store
}

// Register creates a new account. The email is normalised to lowercase
// before storage; a taken email yields ErrDuplicateAccount.
func (s *UserService) Register(ctx context.Context, email, password, name string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	email = normalizeEmail(email)

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
	}

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			l.Info("registration rejected, email taken", "email", email)
			return domain.User{}, ErrDuplicateAccount
		}
		return domain.User{}, err
	}

	l.Info("user registered", "user_id", u.ID)
	return u, nil
}

// Authenticate verifies credentials and returns the matching user.
// Unknown email and wrong password both yield ErrInvalidCredentials so the
// response doesn't leak which accounts exist.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a verification anyway to keep timing comparable.
			_ = cryptox.VerifyPassword(password, dummyHash())
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		l.Info("password verification failed", "user_id", u.ID)
		return domain.User{}, ErrInvalidCredentials
	}

	return u, nil
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// ChangePassword stores a new password hash after verifying the current
// password. A wrong current password yields ErrInvalidCredentials.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := cryptox.VerifyPassword(current, u.PasswordHash); err != nil {
		l.Info("password change rejected, current password wrong", "user_id", u.ID)
		return ErrInvalidCredentials
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return err
	}

	if err := s.Store.Users().UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}

	l.Info("password changed", "user_id", u.ID)
	return nil
}

// DeleteAccount removes the user permanently. Refresh tokens go with the
// row via the schema's cascade.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	l := slogx.FromContext(ctx)

	if err := s.Store.Users().DeleteUser(ctx, userID); err != nil {
		return err
	}

	l.Info("account deleted", "user_id", userID)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// dummyHash returns a throwaway argon2 hash used to equalise the cost of a
// failed lookup with a real verification. Computed lazily so the pepper
// path is configured before the first hash.
var dummyHash = sync.OnceValue(func() string {
	h, err := cryptox.HashPassword("dummy-timing-password")
	if err != nil {
		return ""
	}
	return h
})

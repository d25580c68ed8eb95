package service

import (
	"context"
	"errors"
	"time"

	"github.com/sessionkit/sessiond/internal/server/domain"
	"github.com/sessionkit/sessiond/internal/server/store"
	"github.com/sessionkit/sessiond/pkg/cryptox"
	"github.com/sessionkit/sessiond/pkg/idx"
	"github.com/sessionkit/sessiond/pkg/jwtx"
	"github.com/sessionkit/sessiond/pkg/slogx"
)

var ErrInvalidRefresh = errors.New("invalid_refresh_token")

type TokenService struct {
	Signer     jwtx.Signer
	Store      store.Store
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// RotateRefresh controls whether Refresh mints a replacement refresh
	// token and revokes the presented one. When off, the same refresh
	// artifact is reused for the session's whole lifetime.
	RotateRefresh bool
}

// Issue starts a new session for an authenticated user: a fresh session ID,
// a signed access token and a stored refresh token.
func (s *TokenService) Issue(ctx context.Context, u domain.User) (*domain.TokenPair, error) {
	now := time.Now()
	sessionID := idx.New().String()

	accessToken, err := s.signAccess(u, sessionID, now)
	if err != nil {
		return nil, err
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(refreshOpaque),
		SessionID: sessionID,
		ExpiresAt: now.Add(s.RefreshTTL),
		Revoked:   false,
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, rt); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshOpaque,
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// Refresh validates the presented refresh token (by fingerprint lookup plus
// expiry/revocation check) and issues a new access token for the same
// session.
//
// A revoked token being presented again means the opaque value leaked or an
// old artifact was replayed after rotation; the whole session is revoked in
// response. With RotateRefresh on, the old token is revoked and a new one
// minted atomically; the returned pair then carries the replacement.
func (s *TokenService) Refresh(ctx context.Context, refreshOpaque string) (*domain.TokenPair, domain.User, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	fp := cryptox.FingerprintToken(refreshOpaque)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.User{}, ErrInvalidRefresh
		}
		return nil, domain.User{}, err
	}

	if rt.Revoked {
		l.Warn("revoked refresh token presented, revoking session",
			"user_id", rt.UserID, "session_id", rt.SessionID)
		_ = s.Store.RefreshTokens().RevokeSessionRefreshTokens(ctx, rt.SessionID)
		return nil, domain.User{}, ErrInvalidRefresh
	}
	if now.After(rt.ExpiresAt) {
		return nil, domain.User{}, ErrInvalidRefresh
	}

	u, err := s.Store.Users().GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.User{}, ErrInvalidRefresh
		}
		return nil, domain.User{}, err
	}

	accessToken, err := s.signAccess(u, rt.SessionID, now)
	if err != nil {
		return nil, domain.User{}, err
	}

	pair := &domain.TokenPair{
		AccessToken: accessToken,
		ExpiresIn:   s.AccessTTL,
	}

	if !s.RotateRefresh {
		return pair, u, nil
	}

	newOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, domain.User{}, err
	}

	newRT := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(newOpaque),
		SessionID: rt.SessionID, // session ID survives rotation
		ExpiresAt: now.Add(s.RefreshTTL),
		Revoked:   false,
	}

	// Atomically: revoke old token and create new one
	if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, fp); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, newRT)
	}); err != nil {
		return nil, domain.User{}, err
	}

	pair.RefreshToken = newOpaque
	return pair, u, nil
}

// Revoke invalidates a single refresh token (logout). Unknown tokens are
// not an error; logout is idempotent.
func (s *TokenService) Revoke(ctx context.Context, refreshOpaque string) error {
	if refreshOpaque == "" {
		return nil
	}
	return s.Store.RefreshTokens().RevokeRefreshToken(ctx, cryptox.FingerprintToken(refreshOpaque))
}

// RevokeAllUserSessions invalidates every refresh token a user holds.
func (s *TokenService) RevokeAllUserSessions(ctx context.Context, userID string) error {
	return s.Store.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID)
}

// RevokeAllByToken resolves the presented refresh token to its owner and
// invalidates every session that user holds. Used for logout-everywhere.
// Unknown tokens are not an error, same as Revoke.
func (s *TokenService) RevokeAllByToken(ctx context.Context, refreshOpaque string) error {
	if refreshOpaque == "" {
		return nil
	}

	fp := cryptox.FingerprintToken(refreshOpaque)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	return s.RevokeAllUserSessions(ctx, rt.UserID)
}

func (s *TokenService) signAccess(u domain.User, sessionID string, now time.Time) (string, error) {
	claims := jwtx.NewAccessClaims(u.ID, sessionID, s.AccessTTL, s.Issuer, u.Email, u.Name, now)
	return s.Signer.Sign(claims)
}

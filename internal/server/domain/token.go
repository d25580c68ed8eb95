package domain

import "time"

// TokenPair is what a successful login or refresh yields: the short-lived
// access token (JWT) and the opaque refresh token.
//
// RefreshToken is empty when the server did not mint a new refresh artifact
// (rotation disabled); callers keep whatever refresh artifact they hold.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration // access token lifetime
}

// RefreshToken models the stored refresh token record in the DB. Only the
// fingerprint of the opaque token is persisted, never the token itself.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // deterministic fingerprint (base64url SHA-256)
	SessionID string // session ID (SID) that persists across token refreshes
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

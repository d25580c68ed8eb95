package authclient

// User is the identity the server returns for an authenticated session.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ErrorResponse is the wire shape of every error the server returns.
type ErrorResponse struct {
	// Code is a stable machine-readable error code (e.g. "invalid_credentials")
	Code string `json:"code"`

	// Message is a human-readable description, safe to surface in a UI
	Message string `json:"message"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// PasswordChangeRequest is the body for PUT /auth/password.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// RefreshRequest is the body for POST /auth/refresh in bearer mode.
// In cookie mode the refresh artifact travels as a cookie and the body is empty.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SessionResponse is returned by login and refresh. The token fields are
// only populated in bearer mode; in cookie mode credentials travel as
// httpOnly cookies and never appear in the body.
type SessionResponse struct {
	User User `json:"user"`

	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// MessageResponse is returned by register and logout.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is returned by the livez and readyz probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports per-dependency readiness.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

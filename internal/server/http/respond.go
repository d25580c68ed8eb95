package http

import (
	"net/http"
	"time"

	"github.com/sessionkit/sessiond/internal/server/domain"
	"github.com/sessionkit/sessiond/pkg/authclient"
	"github.com/sessionkit/sessiond/pkg/httpx"
)

// Cookie names used in cookie transport mode. The refresh cookie is scoped
// to /auth so browsers only send it to the auth endpoints.
const (
	AccessCookieName  = "sessiond_access"
	RefreshCookieName = "sessiond_refresh"
)

// Transport describes how credential artifacts travel to clients.
type Transport struct {
	Mode         string // "cookie" or "bearer"
	CookieSecure bool
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

func (t Transport) cookieMode() bool { return t.Mode != "bearer" }

func writeError(w http.ResponseWriter, status int, code, message string) {
	httpx.WriteJSON(w, status, authclient.ErrorResponse{Code: code, Message: message})
}

func userPayload(u domain.User) authclient.User {
	return authclient.User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// writeSession sends a token pair to the client per the transport mode.
// In cookie mode the artifacts become httpOnly cookies and never appear in
// the body; bearer clients get them in the body and manage them directly.
// An empty pair.RefreshToken means "keep what you have" (no rotation).
func writeSession(w http.ResponseWriter, t Transport, u domain.User, pair *domain.TokenPair) {
	resp := authclient.SessionResponse{User: userPayload(u)}

	if t.cookieMode() {
		setCookie(w, t, AccessCookieName, pair.AccessToken, "/", t.AccessTTL)
		if pair.RefreshToken != "" {
			setCookie(w, t, RefreshCookieName, pair.RefreshToken, "/auth", t.RefreshTTL)
		}
	} else {
		resp.AccessToken = pair.AccessToken
		resp.RefreshToken = pair.RefreshToken
		resp.ExpiresIn = int(pair.ExpiresIn.Seconds())
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func setCookie(w http.ResponseWriter, t Transport, name, value, path string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   t.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookies(w http.ResponseWriter, t Transport) {
	if !t.cookieMode() {
		return
	}
	setCookie(w, t, AccessCookieName, "", "/", -time.Second)
	setCookie(w, t, RefreshCookieName, "", "/auth", -time.Second)
}

// refreshTokenFrom extracts the opaque refresh artifact from the request:
// the refresh cookie in cookie mode, the JSON body otherwise.
func refreshTokenFrom(r *http.Request, t Transport, body authclient.RefreshRequest) string {
	if t.cookieMode() {
		if c, err := r.Cookie(RefreshCookieName); err == nil {
			return c.Value
		}
		return ""
	}
	return body.RefreshToken
}

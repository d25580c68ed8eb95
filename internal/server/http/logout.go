package http

import (
	"encoding/json"
	"net/http"

	"github.com/sessionkit/sessiond/internal/server/service"
	"github.com/sessionkit/sessiond/pkg/authclient"
	"github.com/sessionkit/sessiond/pkg/httpx"
	"github.com/sessionkit/sessiond/pkg/slogx"
)

type LogoutHandler struct {
	TokenService *service.TokenService
	Transport    Transport

	// RevokeAll switches logout from ending one session to ending every
	// session the token's owner holds (logout-everywhere policy).
	RevokeAll bool
}

// ServeHTTP ends the session: the refresh token is revoked server-side and
// the session cookies cleared. Idempotent; an unknown or missing token
// still gets a 200.
//
//	@Summary		Log out
//	@Description	Revokes the refresh token and clears session cookies. Safe to call without a valid session.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authclient.RefreshRequest	false	"Refresh token to revoke (bearer mode only)"
//	@Success		200		{object}	authclient.MessageResponse	"logged out"
//	@Router			/auth/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var body authclient.RefreshRequest
	_ = json.NewDecoder(r.Body).Decode(&body)

	if opaque := refreshTokenFrom(r, h.Transport, body); opaque != "" {
		revoke := h.TokenService.Revoke
		if h.RevokeAll {
			revoke = h.TokenService.RevokeAllByToken
		}
		if err := revoke(ctx, opaque); err != nil {
			// Revocation failure doesn't block the logout response.
			log.Error("refresh token revocation failed", "err", err)
		}
	}

	clearSessionCookies(w, h.Transport)
	httpx.WriteJSON(w, http.StatusOK, authclient.MessageResponse{Message: "logged out"})
}

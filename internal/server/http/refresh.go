package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sessionkit/sessiond/internal/server/service"
	"github.com/sessionkit/sessiond/pkg/authclient"
	"github.com/sessionkit/sessiond/pkg/slogx"
)

type RefreshHandler struct {
	TokenService *service.TokenService
	Transport    Transport
}

// ServeHTTP exchanges a valid refresh token for a fresh access token.
//
//	@Summary		Renew the session
//	@Description	Validates the refresh token (cookie in cookie mode, body field in bearer mode) and issues a new access token. When rotation is enabled a replacement refresh token is issued and the old one revoked.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authclient.RefreshRequest	false	"Refresh token (bearer mode only)"
//	@Success		200		{object}	authclient.SessionResponse	"user, new access token; refresh token only when rotated"
//	@Failure		401		{object}	authclient.ErrorResponse	"unauthenticated"
//	@Failure		500		{object}	authclient.ErrorResponse	"server_error"
//	@Router			/auth/refresh [post].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var body authclient.RefreshRequest
	_ = json.NewDecoder(r.Body).Decode(&body) // body is optional in cookie mode

	opaque := refreshTokenFrom(r, h.Transport, body)
	if opaque == "" {
		writeError(w, http.StatusUnauthorized, authclient.CodeUnauthenticated, "no refresh token")
		return
	}

	pair, user, err := h.TokenService.Refresh(ctx, opaque)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			clearSessionCookies(w, h.Transport)
			writeError(w, http.StatusUnauthorized, authclient.CodeUnauthenticated, "refresh token invalid")
			return
		}
		log.Error("refresh failed", "err", err)
		writeError(w, http.StatusInternalServerError, authclient.CodeServerError, "refresh failed")
		return
	}

	writeSession(w, h.Transport, user, pair)
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sessionkit/sessiond/internal/server/service"
	"github.com/sessionkit/sessiond/pkg/authclient"
	"github.com/sessionkit/sessiond/pkg/httpx"
	"github.com/sessionkit/sessiond/pkg/slogx"
)

type PasswordHandler struct {
	UserService  *service.UserService
	TokenService *service.TokenService
	Transport    Transport
}

// ServeHTTP rotates the account password. Every session the user holds is
// revoked afterwards, so stolen refresh tokens die with the old password;
// the caller has to log in again with the new one.
//
// A wrong current password is a 403, not a 401: the access token that got
// the request here is perfectly valid, and clients must not start a
// session refresh over it.
//
//	@Summary		Change the account password
//	@Description	Verifies the current password, stores the new one and revokes every session the user holds.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authclient.PasswordChangeRequest	true	"Current and new password"
//	@Success		200		{object}	authclient.MessageResponse			"password changed"
//	@Failure		400		{object}	authclient.ErrorResponse			"validation_error"
//	@Failure		403		{object}	authclient.ErrorResponse			"invalid_credentials"
//	@Failure		500		{object}	authclient.ErrorResponse			"server_error"
//	@Router			/auth/password [put].
func (h *PasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, authclient.CodeUnauthenticated, "no authenticated user")
		return
	}

	var req authclient.PasswordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, authclient.CodeValidation, "invalid JSON body")
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeError(w, http.StatusBadRequest, authclient.CodeValidation,
			"password must be at least 8 characters")
		return
	}

	if err := h.UserService.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusForbidden, authclient.CodeInvalidCredentials,
				"Current password is incorrect")
			return
		}
		log.Error("password change failed", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, authclient.CodeServerError, "password change failed")
		return
	}

	if err := h.TokenService.RevokeAllUserSessions(ctx, userID); err != nil {
		// The password did change; session cleanup failing is logged, not fatal.
		log.Error("session revocation after password change failed", "user_id", userID, "err", err)
	}

	clearSessionCookies(w, h.Transport)
	httpx.WriteJSON(w, http.StatusOK, authclient.MessageResponse{Message: "password changed"})
}

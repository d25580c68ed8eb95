package http

import (
	"net/http"

	"github.com/sessionkit/sessiond/internal/server/service"
	"github.com/sessionkit/sessiond/pkg/authclient"
	"github.com/sessionkit/sessiond/pkg/httpx"
	"github.com/sessionkit/sessiond/pkg/slogx"
)

type DeleteAccountHandler struct {
	UserService *service.UserService
	Transport   Transport
}

// ServeHTTP permanently deletes the authenticated account. The schema
// cascades the user's refresh tokens away with the row, so no separate
// revocation pass is needed.
//
//	@Summary		Delete the account
//	@Description	Permanently removes the authenticated account and every session it holds.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authclient.MessageResponse	"account deleted"
//	@Failure		401	{object}	authclient.ErrorResponse	"unauthenticated"
//	@Failure		500	{object}	authclient.ErrorResponse	"server_error"
//	@Router			/auth/me [delete].
func (h *DeleteAccountHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, authclient.CodeUnauthenticated, "no authenticated user")
		return
	}

	if err := h.UserService.DeleteAccount(ctx, userID); err != nil {
		log.Error("account deletion failed", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, authclient.CodeServerError, "account deletion failed")
		return
	}

	clearSessionCookies(w, h.Transport)
	httpx.WriteJSON(w, http.StatusOK, authclient.MessageResponse{Message: "account deleted"})
}

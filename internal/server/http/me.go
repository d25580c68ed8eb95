package http

import (
	"net/http"

	"github.com/sessionkit/sessiond/internal/server/service"
	"github.com/sessionkit/sessiond/pkg/authclient"
	"github.com/sessionkit/sessiond/pkg/httpx"
	"github.com/sessionkit/sessiond/pkg/slogx"
)

type MeHandler struct {
	UserService *service.UserService
}

// ServeHTTP returns the identity behind the presented access token.
//
//	@Summary		Current user
//	@Description	Returns the authenticated user's profile. Requires a valid access token (cookie or Authorization header).
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authclient.SessionResponse	"user"
//	@Failure		401	{object}	authclient.ErrorResponse	"unauthenticated"
//	@Failure		500	{object}	authclient.ErrorResponse	"server_error"
//	@Router			/auth/me [get].
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, authclient.CodeUnauthenticated, "no authenticated user")
		return
	}

	user, err := h.UserService.GetUserByID(ctx, userID)
	if err != nil {
		// The token outlived the account.
		log.Warn("failed to load user", "user_id", userID, "err", err)
		writeError(w, http.StatusUnauthorized, authclient.CodeUnauthenticated, "account no longer exists")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authclient.SessionResponse{User: userPayload(user)})
}

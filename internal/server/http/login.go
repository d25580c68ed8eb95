package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sessionkit/sessiond/internal/server/service"
	"github.com/sessionkit/sessiond/pkg/authclient"
	"github.com/sessionkit/sessiond/pkg/slogx"
)

type LoginHandler struct {
	UserService  *service.UserService
	TokenService *service.TokenService
	Transport    Transport
}

// ServeHTTP handles credential login.
//
//	@Summary		Log in with credentials
//	@Description	Verifies email and password and starts a session. In cookie mode the tokens are set as httpOnly cookies; in bearer mode they are returned in the body.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authclient.LoginRequest		true	"Credentials"
//	@Success		200		{object}	authclient.SessionResponse	"user, and in bearer mode the token pair"
//	@Failure		400		{object}	authclient.ErrorResponse	"validation_error"
//	@Failure		401		{object}	authclient.ErrorResponse	"invalid_credentials"
//	@Failure		500		{object}	authclient.ErrorResponse	"server_error"
//	@Router			/auth/login [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authclient.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, authclient.CodeValidation, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, authclient.CodeValidation, "email and password are required")
		return
	}

	user, err := h.UserService.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, authclient.CodeInvalidCredentials,
				"Invalid email or password")
			return
		}
		log.Error("login failed", "err", err)
		writeError(w, http.StatusInternalServerError, authclient.CodeServerError, "login failed")
		return
	}

	pair, err := h.TokenService.Issue(ctx, user)
	if err != nil {
		log.Error("session issue failed", "user_id", user.ID, "err", err)
		writeError(w, http.StatusInternalServerError, authclient.CodeServerError, "login failed")
		return
	}

	writeSession(w, h.Transport, user, pair)
}

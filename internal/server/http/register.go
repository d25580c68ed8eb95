package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sessionkit/sessiond/internal/server/service"
	"github.com/sessionkit/sessiond/pkg/authclient"
	"github.com/sessionkit/sessiond/pkg/httpx"
	"github.com/sessionkit/sessiond/pkg/slogx"
)

const minPasswordLength = 8

type RegisterHandler struct {
	UserService *service.UserService
}

// ServeHTTP handles account creation.
//
//	@Summary		Register a new account
//	@Description	Creates an account from email, password and display name. Does not establish a session; follow up with /auth/login.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authclient.RegisterRequest	true	"Registration details"
//	@Success		201		{object}	authclient.MessageResponse	"account created"
//	@Failure		400		{object}	authclient.ErrorResponse	"validation_error or duplicate_account"
//	@Failure		500		{object}	authclient.ErrorResponse	"server_error"
//	@Router			/auth/register [post].
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authclient.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, authclient.CodeValidation, "invalid JSON body")
		return
	}

	if msg := validateRegistration(req); msg != "" {
		writeError(w, http.StatusBadRequest, authclient.CodeValidation, msg)
		return
	}

	if _, err := h.UserService.Register(ctx, req.Email, req.Password, req.Name); err != nil {
		if errors.Is(err, service.ErrDuplicateAccount) {
			writeError(w, http.StatusBadRequest, authclient.CodeDuplicateAccount,
				"An account with this email already exists")
			return
		}
		log.Error("registration failed", "err", err)
		writeError(w, http.StatusInternalServerError, authclient.CodeServerError, "registration failed")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authclient.MessageResponse{Message: "account created"})
}

func validateRegistration(req authclient.RegisterRequest) string {
	email := strings.TrimSpace(req.Email)
	switch {
	case email == "":
		return "email is required"
	case !strings.Contains(email, "@"):
		return "email is not valid"
	case len(req.Password) < minPasswordLength:
		return "password must be at least 8 characters"
	}
	return ""
}

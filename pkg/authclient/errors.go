package authclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Stable error codes shared between the server handlers and this SDK.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeDuplicateAccount   = "duplicate_account"
	CodeUnauthenticated    = "unauthenticated"
	CodeValidation         = "validation_error"
	CodeServerError        = "server_error"
)

// Sentinel errors for the failure modes callers branch on. Use errors.Is;
// the concrete *APIError carries the server's message.
var (
	// ErrInvalidCredentials: login rejected (401 from /auth/login).
	ErrInvalidCredentials = errors.New("authclient: invalid credentials")

	// ErrDuplicateAccount: register rejected, email already taken.
	ErrDuplicateAccount = errors.New("authclient: account already exists")

	// ErrUnauthenticated: protected call rejected after the refresh flow
	// already ran (or was not applicable).
	ErrUnauthenticated = errors.New("authclient: unauthenticated")

	// ErrRefreshExhausted: the refresh call itself failed, the session is gone.
	ErrRefreshExhausted = errors.New("authclient: refresh exhausted")

	// ErrNetwork: transport-level failure, no response received.
	ErrNetwork = errors.New("authclient: network failure")
)

// APIError is a typed error response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Code, e.Message, e.StatusCode)
}

// Unwrap maps the wire code onto the matching sentinel so callers can use
// errors.Is without inspecting codes themselves.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case CodeInvalidCredentials:
		return ErrInvalidCredentials
	case CodeDuplicateAccount:
		return ErrDuplicateAccount
	case CodeUnauthenticated:
		return ErrUnauthenticated
	}
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthenticated
	}
	return nil
}

// parseErrorResponse turns a non-2xx response body into a typed *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Code != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       errResp.Code,
			Message:    errResp.Message,
		}
	}

	// Fallback: create a generic error from the status code
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       CodeServerError,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}

// decodeJSON decodes a response into target, converting non-expected status
// codes into a typed *APIError. Always closes the body.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp, bodyBytes)
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

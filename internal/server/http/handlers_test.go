package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	authhttp "github.com/sessionkit/sessiond/internal/server/http"
	"github.com/sessionkit/sessiond/internal/server/service"
	"github.com/sessionkit/sessiond/internal/server/store"
	"github.com/sessionkit/sessiond/internal/server/store/drivers/sqlite"
	"github.com/sessionkit/sessiond/pkg/authclient"
	"github.com/sessionkit/sessiond/pkg/cryptox"
	"github.com/sessionkit/sessiond/pkg/jwtx"
)

type testServer struct {
	*httptest.Server
	store store.Store
}

// newTestServer stands up the full router against a throwaway sqlite store.
// Every caller gets its own rate limiter state, so tests just need to stay
// under the per-profile budgets.
func newTestServer(t *testing.T, mode string, rotate bool) *testServer {
	t.Helper()

	dir := t.TempDir()
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	st, err := sqlite.NewStore("file:" + filepath.Join(dir, "sessiond.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.ApplyMigrations())

	key, err := jwtx.GenerateEdDSA("test-key", "sessiond-test")
	require.NoError(t, err)

	tokens := &service.TokenService{
		Signer:        key,
		Store:         st,
		Issuer:        "sessiond-test",
		AccessTTL:     jwtx.DefaultAccessTokenTTL,
		RefreshTTL:    jwtx.DefaultRefreshTokenTTL,
		RotateRefresh: rotate,
	}

	router := authhttp.NewRouter(key, key, "test", st, slog.New(slog.DiscardHandler))
	router.Transport = authhttp.Transport{
		Mode:       mode,
		AccessTTL:  tokens.AccessTTL,
		RefreshTTL: tokens.RefreshTTL,
	}
	router.UserService = &service.UserService{Store: st}
	router.TokenService = tokens
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, store: st}
}

func (ts *testServer) postJSON(t *testing.T, path string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (ts *testServer) get(t *testing.T, path string, configure func(*http.Request)) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	if configure != nil {
		configure(req)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (ts *testServer) doJSON(t *testing.T, method, path string, body any, configure func(*http.Request)) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if configure != nil {
		configure(req)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var v T
	require.NoError(t, json.Unmarshal(raw, &v), "body: %s", raw)
	return v
}

func (ts *testServer) register(t *testing.T, email, password string) {
	t.Helper()

	resp := ts.postJSON(t, "/auth/register", authclient.RegisterRequest{
		Email:    email,
		Password: password,
		Name:     "Test User",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func (ts *testServer) login(t *testing.T, email, password string) *http.Response {
	t.Helper()

	resp := ts.postJSON(t, "/auth/login", authclient.LoginRequest{
		Email:    email,
		Password: password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return resp
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRegisterEndpoint(t *testing.T) {
	ts := newTestServer(t, "cookie", true)

	t.Run("creates an account", func(t *testing.T) {
		resp := ts.postJSON(t, "/auth/register", authclient.RegisterRequest{
			Email:    "alice@example.com",
			Password: "correct horse",
			Name:     "Alice",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		msg := decodeBody[authclient.MessageResponse](t, resp)
		require.Equal(t, "account created", msg.Message)
	})

	t.Run("rejects invalid payloads", func(t *testing.T) {
		cases := []struct {
			name string
			req  authclient.RegisterRequest
		}{
			{"missing email", authclient.RegisterRequest{Password: "long enough pw", Name: "X"}},
			{"malformed email", authclient.RegisterRequest{Email: "not-an-email", Password: "long enough pw"}},
			{"short password", authclient.RegisterRequest{Email: "bob@example.com", Password: "short"}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				resp := ts.postJSON(t, "/auth/register", tc.req)
				require.Equal(t, http.StatusBadRequest, resp.StatusCode)
				errResp := decodeBody[authclient.ErrorResponse](t, resp)
				require.Equal(t, authclient.CodeValidation, errResp.Code)
			})
		}
	})

	t.Run("rejects a taken email case-insensitively", func(t *testing.T) {
		resp := ts.postJSON(t, "/auth/register", authclient.RegisterRequest{
			Email:    "ALICE@example.com",
			Password: "another password",
			Name:     "Imposter",
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		errResp := decodeBody[authclient.ErrorResponse](t, resp)
		require.Equal(t, authclient.CodeDuplicateAccount, errResp.Code)
	})
}

func TestLoginCookieMode(t *testing.T) {
	ts := newTestServer(t, "cookie", true)
	ts.register(t, "alice@example.com", "correct horse")

	t.Run("sets httpOnly session cookies", func(t *testing.T) {
		resp := ts.login(t, "alice@example.com", "correct horse")

		access := cookieByName(resp, authhttp.AccessCookieName)
		require.NotNil(t, access)
		require.NotEmpty(t, access.Value)
		require.True(t, access.HttpOnly)
		require.Equal(t, "/", access.Path)

		refresh := cookieByName(resp, authhttp.RefreshCookieName)
		require.NotNil(t, refresh)
		require.NotEmpty(t, refresh.Value)
		require.True(t, refresh.HttpOnly)
		require.Equal(t, "/auth", refresh.Path, "refresh cookie must not travel outside /auth")

		session := decodeBody[authclient.SessionResponse](t, resp)
		require.Equal(t, "alice@example.com", session.User.Email)
		require.Empty(t, session.AccessToken, "tokens must not leak into the body in cookie mode")
		require.Empty(t, session.RefreshToken)
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		resp := ts.postJSON(t, "/auth/login", authclient.LoginRequest{
			Email:    "alice@example.com",
			Password: "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Empty(t, resp.Cookies())
		errResp := decodeBody[authclient.ErrorResponse](t, resp)
		require.Equal(t, authclient.CodeInvalidCredentials, errResp.Code)
	})

	t.Run("rejects an unknown email with the same error", func(t *testing.T) {
		resp := ts.postJSON(t, "/auth/login", authclient.LoginRequest{
			Email:    "nobody@example.com",
			Password: "whatever pw",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		errResp := decodeBody[authclient.ErrorResponse](t, resp)
		require.Equal(t, authclient.CodeInvalidCredentials, errResp.Code)
	})
}

func TestLoginBearerMode(t *testing.T) {
	ts := newTestServer(t, "bearer", true)
	ts.register(t, "alice@example.com", "correct horse")

	resp := ts.login(t, "alice@example.com", "correct horse")
	require.Empty(t, resp.Cookies(), "bearer mode must not set cookies")

	session := decodeBody[authclient.SessionResponse](t, resp)
	require.NotEmpty(t, session.AccessToken)
	require.NotEmpty(t, session.RefreshToken)
	require.Equal(t, int(jwtx.DefaultAccessTokenTTL.Seconds()), session.ExpiresIn)
	require.Equal(t, "alice@example.com", session.User.Email)
}

func TestRefreshRotation(t *testing.T) {
	ts := newTestServer(t, "cookie", true)
	ts.register(t, "alice@example.com", "correct horse")
	loginResp := ts.login(t, "alice@example.com", "correct horse")
	loginResp.Body.Close()

	oldRefresh := cookieByName(loginResp, authhttp.RefreshCookieName)
	require.NotNil(t, oldRefresh)

	resp := ts.postJSON(t, "/auth/refresh", nil, oldRefresh)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	newAccess := cookieByName(resp, authhttp.AccessCookieName)
	require.NotNil(t, newAccess)
	require.NotEmpty(t, newAccess.Value)

	newRefresh := cookieByName(resp, authhttp.RefreshCookieName)
	require.NotNil(t, newRefresh)
	require.NotEqual(t, oldRefresh.Value, newRefresh.Value, "refresh token should rotate")

	t.Run("replaying the rotated-out token kills the session", func(t *testing.T) {
		resp := ts.postJSON(t, "/auth/refresh", nil, oldRefresh)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		errResp := decodeBody[authclient.ErrorResponse](t, resp)
		require.Equal(t, authclient.CodeUnauthenticated, errResp.Code)

		// The cookies are actively expired on the way out.
		cleared := cookieByName(resp, authhttp.RefreshCookieName)
		require.NotNil(t, cleared)
		require.Negative(t, cleared.MaxAge)

		// Reuse detection revoked the whole session, so the descendant
		// token is dead too.
		resp = ts.postJSON(t, "/auth/refresh", nil, newRefresh)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestRefreshWithoutRotation(t *testing.T) {
	ts := newTestServer(t, "bearer", false)
	ts.register(t, "alice@example.com", "correct horse")

	loginResp := ts.login(t, "alice@example.com", "correct horse")
	session := decodeBody[authclient.SessionResponse](t, loginResp)

	resp := ts.postJSON(t, "/auth/refresh", authclient.RefreshRequest{RefreshToken: session.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	renewed := decodeBody[authclient.SessionResponse](t, resp)
	require.NotEmpty(t, renewed.AccessToken)
	require.Empty(t, renewed.RefreshToken, "no replacement token when rotation is off")

	// The original refresh token stays good for the session's lifetime.
	resp = ts.postJSON(t, "/auth/refresh", authclient.RefreshRequest{RefreshToken: session.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestRefreshRejectsMissingToken(t *testing.T) {
	ts := newTestServer(t, "cookie", true)

	resp := ts.postJSON(t, "/auth/refresh", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	errResp := decodeBody[authclient.ErrorResponse](t, resp)
	require.Equal(t, authclient.CodeUnauthenticated, errResp.Code)
}

func TestMeEndpoint(t *testing.T) {
	t.Run("bearer mode", func(t *testing.T) {
		ts := newTestServer(t, "bearer", true)
		ts.register(t, "alice@example.com", "correct horse")
		loginResp := ts.login(t, "alice@example.com", "correct horse")
		session := decodeBody[authclient.SessionResponse](t, loginResp)

		resp := ts.get(t, "/auth/me", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+session.AccessToken)
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		me := decodeBody[authclient.SessionResponse](t, resp)
		require.Equal(t, session.User.ID, me.User.ID)
		require.Equal(t, "alice@example.com", me.User.Email)

		resp = ts.get(t, "/auth/me", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, resp.Header.Get("WWW-Authenticate"), "invalid_token")
		resp.Body.Close()

		resp = ts.get(t, "/auth/me", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer not-a-jwt")
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("cookie mode", func(t *testing.T) {
		ts := newTestServer(t, "cookie", true)
		ts.register(t, "alice@example.com", "correct horse")
		loginResp := ts.login(t, "alice@example.com", "correct horse")
		loginResp.Body.Close()

		access := cookieByName(loginResp, authhttp.AccessCookieName)
		require.NotNil(t, access)

		resp := ts.get(t, "/auth/me", func(r *http.Request) {
			r.AddCookie(access)
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		me := decodeBody[authclient.SessionResponse](t, resp)
		require.Equal(t, "alice@example.com", me.User.Email)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	ts := newTestServer(t, "cookie", true)
	ts.register(t, "alice@example.com", "correct horse")
	loginResp := ts.login(t, "alice@example.com", "correct horse")
	loginResp.Body.Close()

	refresh := cookieByName(loginResp, authhttp.RefreshCookieName)
	require.NotNil(t, refresh)

	resp := ts.postJSON(t, "/auth/logout", nil, refresh)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, name := range []string{authhttp.AccessCookieName, authhttp.RefreshCookieName} {
		cleared := cookieByName(resp, name)
		require.NotNil(t, cleared, "%s should be cleared", name)
		require.Negative(t, cleared.MaxAge)
	}
	msg := decodeBody[authclient.MessageResponse](t, resp)
	require.Equal(t, "logged out", msg.Message)

	t.Run("refresh token is revoked server-side", func(t *testing.T) {
		resp := ts.postJSON(t, "/auth/refresh", nil, refresh)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("logout without a session still succeeds", func(t *testing.T) {
		resp := ts.postJSON(t, "/auth/logout", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("livez", func(t *testing.T) {
		ts := newTestServer(t, "cookie", true)

		resp := ts.get(t, "/livez", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		health := decodeBody[authclient.HealthResponse](t, resp)
		require.Equal(t, "ok", health.Status)
		require.Equal(t, "test", health.Version)
		require.NotEmpty(t, health.Uptime)
	})

	t.Run("readyz reports dependency checks", func(t *testing.T) {
		ts := newTestServer(t, "cookie", true)

		resp := ts.get(t, "/readyz", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		health := decodeBody[authclient.HealthResponse](t, resp)
		require.Equal(t, "ok", health.Status)
		require.NotNil(t, health.Checks)
		require.Equal(t, "ok", health.Checks.Database)
		require.Equal(t, "ok", health.Checks.Signer)
	})

	t.Run("readyz degrades when the database is gone", func(t *testing.T) {
		ts := newTestServer(t, "cookie", true)
		require.NoError(t, ts.store.Close())

		resp := ts.get(t, "/readyz", nil)
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		health := decodeBody[authclient.HealthResponse](t, resp)
		require.NotEqual(t, "ok", health.Status)
	})
}

func TestPasswordChangeEndpoint(t *testing.T) {
	ts := newTestServer(t, "bearer", true)
	ts.register(t, "alice@example.com", "correct horse")
	loginResp := ts.login(t, "alice@example.com", "correct horse")
	session := decodeBody[authclient.SessionResponse](t, loginResp)

	withAccess := func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+session.AccessToken)
	}

	t.Run("requires a session", func(t *testing.T) {
		resp := ts.doJSON(t, http.MethodPut, "/auth/password", authclient.PasswordChangeRequest{
			CurrentPassword: "correct horse",
			NewPassword:     "a new passphrase",
		}, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("rejects a wrong current password without a refresh trip", func(t *testing.T) {
		resp := ts.doJSON(t, http.MethodPut, "/auth/password", authclient.PasswordChangeRequest{
			CurrentPassword: "not the password",
			NewPassword:     "a new passphrase",
		}, withAccess)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		errResp := decodeBody[authclient.ErrorResponse](t, resp)
		require.Equal(t, authclient.CodeInvalidCredentials, errResp.Code)
	})

	t.Run("rejects a short new password", func(t *testing.T) {
		resp := ts.doJSON(t, http.MethodPut, "/auth/password", authclient.PasswordChangeRequest{
			CurrentPassword: "correct horse",
			NewPassword:     "short",
		}, withAccess)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		errResp := decodeBody[authclient.ErrorResponse](t, resp)
		require.Equal(t, authclient.CodeValidation, errResp.Code)
	})

	t.Run("changes the password and revokes every session", func(t *testing.T) {
		resp := ts.doJSON(t, http.MethodPut, "/auth/password", authclient.PasswordChangeRequest{
			CurrentPassword: "correct horse",
			NewPassword:     "a new passphrase",
		}, withAccess)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		msg := decodeBody[authclient.MessageResponse](t, resp)
		require.Equal(t, "password changed", msg.Message)

		// The refresh token from before the change is dead.
		resp = ts.postJSON(t, "/auth/refresh", authclient.RefreshRequest{RefreshToken: session.RefreshToken})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()

		// Old password out, new password in.
		resp = ts.postJSON(t, "/auth/login", authclient.LoginRequest{
			Email:    "alice@example.com",
			Password: "correct horse",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()

		loginResp := ts.login(t, "alice@example.com", "a new passphrase")
		loginResp.Body.Close()
	})
}

func TestDeleteAccountEndpoint(t *testing.T) {
	ts := newTestServer(t, "cookie", true)
	ts.register(t, "alice@example.com", "correct horse")
	loginResp := ts.login(t, "alice@example.com", "correct horse")
	loginResp.Body.Close()

	access := cookieByName(loginResp, authhttp.AccessCookieName)
	require.NotNil(t, access)
	refresh := cookieByName(loginResp, authhttp.RefreshCookieName)
	require.NotNil(t, refresh)

	resp := ts.doJSON(t, http.MethodDelete, "/auth/me", nil, func(r *http.Request) {
		r.AddCookie(access)
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msg := decodeBody[authclient.MessageResponse](t, resp)
	require.Equal(t, "account deleted", msg.Message)

	t.Run("refresh tokens die with the account", func(t *testing.T) {
		resp := ts.postJSON(t, "/auth/refresh", nil, refresh)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("credentials no longer log in", func(t *testing.T) {
		resp := ts.postJSON(t, "/auth/login", authclient.LoginRequest{
			Email:    "alice@example.com",
			Password: "correct horse",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		errResp := decodeBody[authclient.ErrorResponse](t, resp)
		require.Equal(t, authclient.CodeInvalidCredentials, errResp.Code)
	})
}

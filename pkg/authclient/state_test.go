package authclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newStateFixture(t *testing.T, handler http.Handler, nav Navigator) (*AuthState, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:   srv.URL,
		Mode:      TransportBearer,
		Navigator: nav,
		Logger:    slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	return NewAuthState(c), srv
}

func TestAuthStateLogin(t *testing.T) {
	t.Parallel()

	t.Run("success populates user and clears error", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
			var req LoginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "a@b.com", req.Email)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(SessionResponse{
				User:         User{ID: "u1", Email: "a@b.com", Name: "Alice"},
				AccessToken:  "access-1",
				RefreshToken: "refresh-1",
			})
		})

		state, _ := newStateFixture(t, mux, nil)

		require.NoError(t, state.Login(context.Background(), "a@b.com", "secret"))
		require.NotNil(t, state.User())
		require.Equal(t, "Alice", state.User().Name)
		require.Empty(t, state.Err())
		require.False(t, state.Loading())
	})

	t.Run("invalid credentials surface server message", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password")
		})

		state, _ := newStateFixture(t, mux, nil)

		err := state.Login(context.Background(), "a@b.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		require.Nil(t, state.User())
		require.Equal(t, "Invalid email or password", state.Err())
		require.False(t, state.Loading())
	})

	t.Run("network failure falls back to generic message", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close() // connection refused from here on

		c, err := New(Config{
			BaseURL: srv.URL,
			Mode:    TransportBearer,
			Logger:  slog.New(slog.DiscardHandler),
		})
		require.NoError(t, err)
		state := NewAuthState(c)

		loginErr := state.Login(context.Background(), "a@b.com", "secret")
		require.ErrorIs(t, loginErr, ErrNetwork)
		require.Equal(t, genericErrorMessage, state.Err())
	})
}

func TestAuthStateRegister(t *testing.T) {
	t.Parallel()

	t.Run("success does not log the user in", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(MessageResponse{Message: "account created"})
		})

		state, _ := newStateFixture(t, mux, nil)

		require.NoError(t, state.Register(context.Background(), "a@b.com", "secret", "Alice"))
		require.Nil(t, state.User())
		require.Empty(t, state.Err())
	})

	t.Run("duplicate account", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusBadRequest, CodeDuplicateAccount, "An account with this email already exists")
		})

		state, _ := newStateFixture(t, mux, nil)

		err := state.Register(context.Background(), "a@b.com", "secret", "Alice")
		require.ErrorIs(t, err, ErrDuplicateAccount)
		require.Equal(t, "An account with this email already exists", state.Err())
	})
}

func TestAuthStateCheckStatus(t *testing.T) {
	t.Parallel()

	t.Run("valid session", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(SessionResponse{User: User{ID: "u1", Email: "a@b.com"}})
		})

		state, _ := newStateFixture(t, mux, nil)
		require.True(t, state.Loading(), "loading until first check settles")

		state.CheckStatus(context.Background())
		require.NotNil(t, state.User())
		require.False(t, state.Loading())
	})

	t.Run("no session signs out locally", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "no session")
		})

		state, _ := newStateFixture(t, mux, nil)
		state.CheckStatus(context.Background())

		require.Nil(t, state.User())
		require.False(t, state.Loading())
	})
}

func TestAuthStateLogout(t *testing.T) {
	t.Parallel()

	t.Run("clears state and navigates", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(SessionResponse{User: User{ID: "u1"}})
		})
		mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(MessageResponse{Message: "logged out"})
		})

		nav := &recordingNavigator{current: "/dashboard"}
		state, _ := newStateFixture(t, mux, nav)

		state.CheckStatus(context.Background())
		require.NotNil(t, state.User())

		state.Logout(context.Background())
		require.Nil(t, state.User())
		require.Empty(t, state.Err())
		require.Equal(t, []string{DefaultLoginPath}, nav.navigations())
	})

	t.Run("server unreachable still clears and navigates", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		nav := &recordingNavigator{current: "/dashboard"}
		c, err := New(Config{
			BaseURL:   srv.URL,
			Mode:      TransportBearer,
			Navigator: nav,
			Logger:    slog.New(slog.DiscardHandler),
		})
		require.NoError(t, err)

		state := NewAuthState(c)
		state.Logout(context.Background())

		require.Nil(t, state.User())
		require.Equal(t, []string{DefaultLoginPath}, nav.navigations())
	})
}

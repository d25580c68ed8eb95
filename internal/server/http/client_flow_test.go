package http_test

import (
	"net/http"
	"net/http/cookiejar"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sessionkit/sessiond/pkg/authclient"
)

// trailNavigator records redirect-to-login calls from the SDK.
type trailNavigator struct {
	mu    sync.Mutex
	trail []string
}

func (n *trailNavigator) NavigateTo(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.trail = append(n.trail, path)
}

func (n *trailNavigator) CurrentPath() string { return "/dashboard" }

func newSDKClient(t *testing.T, ts *testServer, mode authclient.TransportMode, nav authclient.Navigator) *authclient.Client {
	t.Helper()

	cfg := authclient.Config{
		BaseURL:   ts.URL,
		Mode:      mode,
		Navigator: nav,
	}
	if mode == authclient.TransportCookie {
		jar, err := cookiejar.New(nil)
		require.NoError(t, err)
		cfg.HTTPClient = &http.Client{Jar: jar, Timeout: 5 * time.Second}
	}

	client, err := authclient.New(cfg)
	require.NoError(t, err)
	return client
}

// TestClientServerCookieFlow walks the whole journey through the real
// router: register, login, authenticated read, logout, and the redirect
// to login once the session is gone.
func TestClientServerCookieFlow(t *testing.T) {
	ts := newTestServer(t, "cookie", true)
	nav := &trailNavigator{}
	client := newSDKClient(t, ts, authclient.TransportCookie, nav)
	ctx := t.Context()

	require.NoError(t, client.Register(ctx, "alice@example.com", "correct horse", "Alice"))

	user, err := client.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.Empty(t, client.AccessToken(), "cookie mode keeps tokens out of the client")

	me, err := client.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, user.ID, me.ID)

	require.NoError(t, client.Logout(ctx))

	// The cookies are gone, so the next read 401s, the refresh attempt
	// fails (the refresh cookie was revoked and cleared), and the SDK
	// sends the user back to the login page.
	_, err = client.Me(ctx)
	require.ErrorIs(t, err, authclient.ErrRefreshExhausted)

	nav.mu.Lock()
	defer nav.mu.Unlock()
	require.Equal(t, []string{authclient.DefaultLoginPath}, nav.trail)
}

// TestClientServerBearerReplay forces an access-token failure and checks
// that the SDK recovers the session through /auth/refresh and replays the
// original request, all against the real handler stack.
func TestClientServerBearerReplay(t *testing.T) {
	ts := newTestServer(t, "bearer", true)
	client := newSDKClient(t, ts, authclient.TransportBearer, nil)
	ctx := t.Context()

	require.NoError(t, client.Register(ctx, "alice@example.com", "correct horse", "Alice"))
	_, err := client.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)

	oldRefresh := client.RefreshToken()
	require.NotEmpty(t, oldRefresh)

	// Simulate access expiry: the server rejects the garbage token, the
	// SDK refreshes and replays Me without surfacing the 401.
	client.SetTokens("garbage", oldRefresh)

	me, err := client.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", me.Email)

	require.NotEqual(t, "garbage", client.AccessToken())
	require.NotEqual(t, oldRefresh, client.RefreshToken(), "rotation replaced the refresh token")
}

// TestClientServerConcurrentRecovery hits the server with parallel reads
// after the access token dies. With rotation on, a second refresh call
// would present a revoked token and kill the session, so every request
// succeeding proves exactly one refresh reached the server.
func TestClientServerConcurrentRecovery(t *testing.T) {
	ts := newTestServer(t, "bearer", true)
	client := newSDKClient(t, ts, authclient.TransportBearer, nil)
	ctx := t.Context()

	require.NoError(t, client.Register(ctx, "alice@example.com", "correct horse", "Alice"))
	_, err := client.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)

	client.SetTokens("garbage", client.RefreshToken())

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Me(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

// TestClientServerBearerLogoutRevokes checks that a bearer-mode logout
// hands the refresh token back to the server for revocation.
func TestClientServerBearerLogoutRevokes(t *testing.T) {
	ts := newTestServer(t, "bearer", true)
	client := newSDKClient(t, ts, authclient.TransportBearer, nil)
	ctx := t.Context()

	require.NoError(t, client.Register(ctx, "alice@example.com", "correct horse", "Alice"))
	_, err := client.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)

	refresh := client.RefreshToken()
	require.NoError(t, client.Logout(ctx))
	require.Empty(t, client.AccessToken())
	require.Empty(t, client.RefreshToken())

	resp := ts.postJSON(t, "/auth/refresh", authclient.RefreshRequest{RefreshToken: refresh})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

// TransportMode selects how credential artifacts travel.
type TransportMode string

const (
	// TransportCookie relies on httpOnly cookies set by the server; the
	// client never sees token values.
	TransportCookie TransportMode = "cookie"

	// TransportBearer carries tokens in response bodies; the client holds
	// them and attaches an Authorization header itself.
	TransportBearer TransportMode = "bearer"
)

// DefaultLoginPath is where users land when their session is gone.
const DefaultLoginPath = "/login"

// authPaths never enter the refresh flow, even on 401. A failing refresh
// must not recursively trigger itself.
var authPaths = map[string]struct{}{
	"/auth/login":    {},
	"/auth/register": {},
	"/auth/refresh":  {},
	"/auth/logout":   {},
}

// Config configures a Client. Only BaseURL is required.
type Config struct {
	BaseURL string

	// Mode defaults to TransportCookie.
	Mode TransportMode

	// HTTPClient defaults to a 10s-timeout client. In cookie mode a cookie
	// jar is installed if the client doesn't have one.
	HTTPClient *http.Client

	// Navigator receives the redirect when the session is unrecoverable.
	// Defaults to NopNavigator.
	Navigator Navigator

	// LoginPath defaults to DefaultLoginPath.
	LoginPath string

	// PublicPaths is the allow-list of destinations that never trigger a
	// redirect-to-login. Defaults to the login and register pages.
	PublicPaths []string

	Logger *slog.Logger
}

// Client wraps every outgoing request, transports credentials per the
// configured mode, and transparently recovers expired sessions through its
// refresh coordinator.
type Client struct {
	baseURL string
	mode    TransportMode
	http    *http.Client
	coord   *refreshCoordinator
	nav     Navigator
	log     *slog.Logger

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("authclient: BaseURL is required")
	}

	mode := cfg.Mode
	if mode == "" {
		mode = TransportCookie
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	if mode == TransportCookie && hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("authclient: cookie jar: %w", err)
		}
		hc.Jar = jar
	}

	nav := cfg.Navigator
	if nav == nil {
		nav = NopNavigator{}
	}

	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}

	public := cfg.PublicPaths
	if public == nil {
		public = []string{loginPath, "/register"}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		mode:    mode,
		http:    hc,
		nav:     nav,
		log:     log,
	}
	c.coord = newRefreshCoordinator(c.refreshSession, nav, loginPath, public, log)

	return c, nil
}

// requestDescriptor captures an outgoing call so a 401'd request can be
// rebuilt and replayed after a refresh. The body is kept as bytes because
// the original reader is consumed by the first attempt.
type requestDescriptor struct {
	method  string
	path    string
	body    []byte
	retried bool
}

func newRequestDescriptor(method, path string, body any) (*requestDescriptor, error) {
	rd := &requestDescriptor{method: method, path: path}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("authclient: encode request body: %w", err)
		}
		rd.body = raw
	}
	return rd, nil
}

func isAuthPath(path string) bool {
	_, ok := authPaths[path]
	return ok
}

// Do performs a request against the server and runs the response through
// the refresh interceptor.
//
// A 401 from a non-auth endpoint triggers exactly one refresh call no
// matter how many requests fail concurrently; on refresh success the
// original request is replayed transparently and its result returned. A
// request is replayed at most once: a second 401 passes through to the
// caller. The caller owns the returned response body.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	rd, err := newRequestDescriptor(method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, rd)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || rd.retried || isAuthPath(rd.path) {
		return resp, nil
	}

	// Retryable 401: mark the request before entering the refresh flow so
	// it can never re-enter, then wait for the (single-flight) refresh.
	drainAndClose(resp.Body)
	rd.retried = true

	if err := c.coord.refresh(ctx); err != nil {
		return nil, err
	}

	return c.send(ctx, rd)
}

// DoJSON is Do plus response decoding: non-expected statuses become typed
// *APIError values.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, target any, expectedStatus int) error {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target, expectedStatus)
}

// send performs a single HTTP attempt with credentials attached. No
// interception happens here.
func (c *Client) send(ctx context.Context, rd *requestDescriptor) (*http.Response, error) {
	var body io.Reader
	if rd.body != nil {
		body = bytes.NewReader(rd.body)
	}

	req, err := http.NewRequestWithContext(ctx, rd.method, c.baseURL+rd.path, body)
	if err != nil {
		return nil, fmt.Errorf("authclient: create request: %w", err)
	}
	if rd.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.mode == TransportBearer {
		if tok := c.AccessToken(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Keep the cause in the chain so callers can tell cancellation
		// apart from a genuine transport failure.
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return resp, nil
}

// Login authenticates with credentials and establishes a session.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var out SessionResponse
	err := c.DoJSON(ctx, http.MethodPost, "/auth/login",
		LoginRequest{Email: email, Password: password}, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}

	c.storeTokens(out.AccessToken, out.RefreshToken)
	return &out.User, nil
}

// Register creates an account. It does not log the new user in.
func (c *Client) Register(ctx context.Context, email, password, name string) error {
	return c.DoJSON(ctx, http.MethodPost, "/auth/register",
		RegisterRequest{Email: email, Password: password, Name: name}, nil, http.StatusCreated)
}

// Me fetches the current identity, silently refreshing an expired session.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out SessionResponse
	if err := c.DoJSON(ctx, http.MethodGet, "/auth/me", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ChangePassword rotates the account password. The server revokes every
// session on success, so the caller must log in again with the new
// password; held credentials are dropped to match.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	err := c.DoJSON(ctx, http.MethodPut, "/auth/password",
		PasswordChangeRequest{CurrentPassword: current, NewPassword: next}, nil, http.StatusOK)
	if err != nil {
		return err
	}
	c.storeTokens("", "")
	return nil
}

// DeleteAccount permanently removes the account and drops held credentials.
func (c *Client) DeleteAccount(ctx context.Context) error {
	if err := c.DoJSON(ctx, http.MethodDelete, "/auth/me", nil, nil, http.StatusOK); err != nil {
		return err
	}
	c.storeTokens("", "")
	return nil
}

// Logout tells the server to revoke the session and drops held credentials.
// The local state is cleared even when the network call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.storeTokens("", "")

	var body any
	if c.mode == TransportBearer {
		if rt := c.RefreshToken(); rt != "" {
			// Hand the server the refresh artifact so it can revoke it.
			body = RefreshRequest{RefreshToken: rt}
		}
	}

	rd, err := newRequestDescriptor(http.MethodPost, "/auth/logout", body)
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, rd)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

// refreshSession performs the actual refresh call. Invoked only by the
// coordinator, which guarantees a single flight.
func (c *Client) refreshSession(ctx context.Context) error {
	var body any
	if c.mode == TransportBearer {
		rt := c.RefreshToken()
		if rt == "" {
			return errors.New("no refresh token held")
		}
		body = RefreshRequest{RefreshToken: rt}
	}

	rd, err := newRequestDescriptor(http.MethodPost, "/auth/refresh", body)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, rd)
	if err != nil {
		return err
	}

	var out SessionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return err
	}

	if c.mode == TransportBearer {
		c.mu.Lock()
		c.accessToken = out.AccessToken
		if out.RefreshToken != "" {
			// Rotation is a server-side policy; keep the old artifact when
			// the server didn't mint a new one.
			c.refreshToken = out.RefreshToken
		}
		c.mu.Unlock()
	}

	return nil
}

// AccessToken returns the held access artifact (bearer mode only).
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// RefreshToken returns the held refresh artifact (bearer mode only).
func (c *Client) RefreshToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshToken
}

// SetTokens seeds credentials from an external source, e.g. a keychain.
func (c *Client) SetTokens(access, refresh string) {
	c.storeTokens(access, refresh)
}

func (c *Client) storeTokens(access, refresh string) {
	c.mu.Lock()
	c.accessToken = access
	c.refreshToken = refresh
	c.mu.Unlock()
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

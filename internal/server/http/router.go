package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sessionkit/sessiond/internal/server/service"
	"github.com/sessionkit/sessiond/internal/server/store"
	"github.com/sessionkit/sessiond/pkg/httpx"
	"github.com/sessionkit/sessiond/pkg/jwtx"
	"github.com/sessionkit/sessiond/pkg/slogx"

	_ "github.com/sessionkit/sessiond/api" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	signer       jwtx.Signer
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	Transport    Transport
	UserService  *service.UserService
	TokenService *service.TokenService

	// LogoutAllSessions makes POST /auth/logout end every session the
	// user holds instead of just the presented one.
	LogoutAllSessions bool
}

func NewRouter(
	signer jwtx.Signer,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		signer:       signer,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Sessiond Authentication API
//	@version		0.1.0
//	@description	Session authentication service: credential login and registration,
//	@description	short-lived JWT access tokens and long-lived opaque refresh tokens
//	@description	with optional rotation. Tokens travel as httpOnly cookies or as
//	@description	bearer tokens depending on server configuration.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// Credential endpoints get the strict profile: they are the brute-force
	// surface.
	registerHandler := &RegisterHandler{UserService: r.UserService}
	r.Mux.Handle("POST /auth/register",
		httpx.Chain(registerHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	loginHandler := &LoginHandler{
		UserService:  r.UserService,
		TokenService: r.TokenService,
		Transport:    r.Transport,
	}
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Refresh fires on every access expiry, so it gets more headroom.
	refreshHandler := &RefreshHandler{TokenService: r.TokenService, Transport: r.Transport}
	r.Mux.Handle("POST /auth/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	logoutHandler := &LogoutHandler{
		TokenService: r.TokenService,
		Transport:    r.Transport,
		RevokeAll:    r.LogoutAllSessions,
	}
	r.Mux.Handle("POST /auth/logout",
		httpx.Chain(logoutHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	meHandler := &MeHandler{UserService: r.UserService}
	r.Mux.Handle("GET /auth/me",
		httpx.Chain(meHandler,
			httpx.AuthnMiddleware(r.verifier, r.accessCookieName()),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	// Account management endpoints require a live session.
	passwordHandler := &PasswordHandler{
		UserService:  r.UserService,
		TokenService: r.TokenService,
		Transport:    r.Transport,
	}
	r.Mux.Handle("PUT /auth/password",
		httpx.Chain(passwordHandler,
			httpx.AuthnMiddleware(r.verifier, r.accessCookieName()),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	deleteAccountHandler := &DeleteAccountHandler{
		UserService: r.UserService,
		Transport:   r.Transport,
	}
	r.Mux.Handle("DELETE /auth/me",
		httpx.Chain(deleteAccountHandler,
			httpx.AuthnMiddleware(r.verifier, r.accessCookieName()),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - monitoring systems may poll frequently
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.signer),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) accessCookieName() string {
	if r.Transport.cookieMode() {
		return AccessCookieName
	}
	return ""
}

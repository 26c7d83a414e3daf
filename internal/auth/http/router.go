package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/blob"
	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"

	_ "github.com/aussiebroadwan/accounts/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	signer       SignerCheck
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        Pinger

	Accounts *service.AccountService
	Gate     *service.SessionGate
	Blobs    blob.Store   // Optional: /files is not served without it
	Metrics  http.Handler // Optional: promhttp handler for /metrics

	CORS         httpx.CORSConfig
	SecureCookie bool
}

func NewRouter(
	signer SignerCheck,
	buildVersion string,
	st Pinger,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		signer:       signer,
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
	// CORS sits outside the mux so preflight requests never reach a
	// method-specific pattern.
	if len(r.CORS.AllowedOrigins) > 0 {
		r.middlewares = append(r.middlewares, httpx.CORS(r.CORS))
	}

	r.registerUsers()
	r.registerPasswords()
	r.registerSession()
	r.registerFiles()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Accounts Service API
//	@version		0.1.0
//	@description	Account registration with email OTP verification, login, and password reset and change flows.
//	@description
//	@description				Session tokens are JWTs returned at login and also set as the httpOnly "token" cookie.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/accounts
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
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerUsers() {
	register := &RegisterHandler{Accounts: r.Accounts}
	otp := &OTPHandler{Accounts: r.Accounts}

	r.Mux.Handle("POST /users/register", register)
	r.Mux.HandleFunc("POST /users/verify-otp", otp.HandleVerify)
	r.Mux.HandleFunc("POST /users/resend-otp", otp.HandleResend)
	r.Mux.HandleFunc("POST /users/check-email", otp.HandleCheckEmail)
}

func (r *Router) registerPasswords() {
	h := &PasswordHandler{Accounts: r.Accounts}

	r.Mux.HandleFunc("POST /users/send-reset-password-email", h.HandleRequestReset)
	r.Mux.HandleFunc("POST /users/password-reset/{id}/{token}", h.HandleResetWithToken)
	r.Mux.HandleFunc("POST /users/reset-password-direct", h.HandleResetDirect)
	r.Mux.HandleFunc("POST /users/change-password-email", h.HandleChangeByEmail)

	// Session-gated: the gate resolves the token (header or cookie) to a user
	r.Mux.Handle("POST /users/change-password",
		httpx.Chain(http.HandlerFunc(h.HandleRequestChange),
			httpx.AuthnMiddleware(r.Gate, CookieName),
		),
	)
	r.Mux.Handle("POST /users/verify-change-password-otp",
		httpx.Chain(http.HandlerFunc(h.HandleConfirmChange),
			httpx.AuthnMiddleware(r.Gate, CookieName),
		),
	)
}

func (r *Router) registerSession() {
	h := &SessionHandler{Accounts: r.Accounts, SecureCookie: r.SecureCookie}

	r.Mux.HandleFunc("POST /users/login", h.HandleLogin)
	r.Mux.HandleFunc("POST /users/logout", h.HandleLogout)
	r.Mux.Handle("GET /users/logged-user",
		httpx.Chain(http.HandlerFunc(h.HandleCurrentUser),
			httpx.AuthnMiddleware(r.Gate, CookieName),
		),
	)
}

func (r *Router) registerFiles() {
	if r.Blobs == nil {
		return
	}
	r.Mux.Handle("GET /files/{ref...}", FilesHandler(r.Blobs))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.signer))

	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics", r.Metrics)
	}
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tabernacle-io/congregate/internal/auth/service"
	"github.com/tabernacle-io/congregate/internal/auth/social"
	"github.com/tabernacle-io/congregate/internal/auth/store"
	"github.com/tabernacle-io/congregate/pkg/httpx"
	"github.com/tabernacle-io/congregate/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store     store.Store
	providers *social.Registry

	AuthService  *service.AuthService
	TokenService *service.TokenService
	UserService  *service.UserService
	AuditService *service.AuditService
	Verifier     *service.VerificationService
	Detector     *service.DeviceDetector
}

func NewRouter(buildVersion string, st store.Store, providers *social.Registry, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		providers:    providers,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAccount()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	auth := &AuthHandler{AuthService: r.AuthService, Providers: r.providers}
	verification := &VerificationHandler{Verifier: r.Verifier}
	authn := requireAuth(r.TokenService)
	observe := observeDevice(r.Detector)

	// Credential endpoints carry the strict per-IP limit on top of the
	// per-account login window enforced inside the service.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(auth.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(auth.HandleLogin),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/social",
		httpx.Chain(http.HandlerFunc(auth.HandleSocialLogin),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(auth.HandleLogout), authn, observe),
	)
	r.Mux.Handle("POST /v1/auth/logout-all",
		httpx.Chain(http.HandlerFunc(auth.HandleLogoutAll), authn, observe),
	)

	r.Mux.Handle("POST /v1/auth/email/verify",
		httpx.Chain(http.HandlerFunc(verification.HandleVerifyEmail),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/email/resend",
		httpx.Chain(http.HandlerFunc(verification.HandleResend), authn, observe,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/forgot",
		httpx.Chain(http.HandlerFunc(verification.HandleForgotPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/reset",
		httpx.Chain(http.HandlerFunc(verification.HandleResetPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerAccount() {
	profile := &ProfileHandler{Users: r.UserService, Auth: r.AuthService}
	sessions := &SessionsHandler{Tokens: r.TokenService}
	authn := requireAuth(r.TokenService)
	observe := observeDevice(r.Detector)

	r.Mux.Handle("GET /v1/me",
		httpx.Chain(http.HandlerFunc(profile.HandleGet), authn, observe),
	)
	r.Mux.Handle("PATCH /v1/me",
		httpx.Chain(http.HandlerFunc(profile.HandleUpdate), authn, observe),
	)
	r.Mux.Handle("PUT /v1/me/password",
		httpx.Chain(http.HandlerFunc(profile.HandleChangePassword), authn, observe),
	)
	r.Mux.Handle("GET /v1/me/sessions",
		httpx.Chain(http.HandlerFunc(sessions.HandleList), authn, observe),
	)
	r.Mux.Handle("DELETE /v1/me/sessions/{id}",
		httpx.Chain(http.HandlerFunc(sessions.HandleRevoke), authn, observe),
	)
}

func (r *Router) registerAdmin() {
	admin := &AdminHandler{Users: r.UserService, Audit: r.AuditService}
	authn := requireAuth(r.TokenService)
	observe := observeDevice(r.Detector)
	verified := requireVerified()

	r.Mux.Handle("GET /v1/users",
		httpx.Chain(http.HandlerFunc(admin.HandleListUsers), authn, observe, verified),
	)
	r.Mux.Handle("GET /v1/users/{id}",
		httpx.Chain(http.HandlerFunc(admin.HandleGetUser), authn, observe, verified),
	)
	r.Mux.Handle("PUT /v1/users/{id}/role",
		httpx.Chain(http.HandlerFunc(admin.HandleChangeRole), authn, observe, verified),
	)
	r.Mux.Handle("DELETE /v1/users/{id}",
		httpx.Chain(http.HandlerFunc(admin.HandleDeleteUser), authn, observe, verified),
	)
	r.Mux.Handle("POST /v1/users/{id}/restore",
		httpx.Chain(http.HandlerFunc(admin.HandleRestoreUser), authn, observe, verified),
	)
	r.Mux.Handle("GET /v1/security-events",
		httpx.Chain(http.HandlerFunc(admin.HandleListEvents), authn, observe, verified),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.store, r.startTime, r.buildVersion))
}

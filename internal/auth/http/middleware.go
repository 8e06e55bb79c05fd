package http

import (
	"net/http"
	"strings"

	"github.com/tabernacle-io/congregate/internal/auth/service"
	"github.com/tabernacle-io/congregate/pkg/httpx"
)

// requireAuth resolves the bearer credential into a user and session and
// stashes both in the request context. Requests without a valid token get
// a uniform 401.
func requireAuth(tokens *service.TokenService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential, ok := bearerToken(r)
			if !ok {
				writeUnauthenticated(w)
				return
			}

			user, session, err := tokens.Authenticate(r.Context(), credential)
			if err != nil {
				writeUnauthenticated(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), user, session)))
		})
	}
}

// requireVerified blocks accounts that have not confirmed their email.
// It must run after requireAuth.
func requireVerified() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _, ok := identityFromContext(r.Context())
			if !ok {
				writeUnauthenticated(w)
				return
			}
			if !user.IsVerified() {
				httpx.Error(w, http.StatusForbidden, "email address not verified", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// observeDevice feeds the authenticated request into the device detector so
// session reuse from an unseen IP/user-agent pair is flagged, not just fresh
// logins. It must run after requireAuth and never blocks the request.
func observeDevice(detector *service.DeviceDetector) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, _, ok := identityFromContext(r.Context()); ok && detector != nil {
				detector.Observe(r.Context(), user, httpx.ClientIP(r), r.UserAgent())
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, credential, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || credential == "" {
		return "", false
	}
	return credential, true
}

func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="congregate"`)
	httpx.Error(w, http.StatusUnauthorized, "unauthenticated", nil)
}

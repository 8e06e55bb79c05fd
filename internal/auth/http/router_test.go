package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabernacle-io/congregate/internal/auth/cache"
	"github.com/tabernacle-io/congregate/internal/auth/domain"
	httpapi "github.com/tabernacle-io/congregate/internal/auth/http"
	"github.com/tabernacle-io/congregate/internal/auth/service"
	"github.com/tabernacle-io/congregate/internal/auth/social"
	"github.com/tabernacle-io/congregate/internal/auth/store"
	"github.com/tabernacle-io/congregate/internal/auth/store/drivers/sqlite"
	"github.com/tabernacle-io/congregate/pkg/cryptox"
	"github.com/tabernacle-io/congregate/pkg/slogx"
)

func init() {
	cryptox.SetPepperPath(filepath.Join(os.TempDir(), "congregate-http-test-pepper"))
}

type testServer struct {
	srv     *httptest.Server
	store   store.Store
	profile *social.Profile // what the fake provider returns
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	mem := cache.NewMemory()
	audit := &service.StoreAuditSink{Store: st}
	notifier := service.LogNotifier{}
	tokens := &service.TokenService{Store: st, Audit: audit}
	verifier := service.NewVerificationService(st, tokens, audit, notifier, []byte("http-test-secret"))

	ts := &testServer{store: st, profile: &social.Profile{}}

	authSvc := &service.AuthService{
		Store:    st,
		Identity: &service.IdentityService{Store: st},
		Tokens:   tokens,
		Limiter:  &service.LoginLimiter{Cache: mem, MaxAttempts: 5, Window: time.Minute},
		Detector: &service.DeviceDetector{Cache: mem, Audit: audit, Notifier: notifier, TTL: time.Hour},
		Audit:    audit,
		Notifier: notifier,
		Verifier: verifier,
	}

	logger := slogx.New(slogx.Config{Service: "congregate-test", Level: "error", Format: "text"})
	router := httpapi.NewRouter("test", st, social.NewRegistry(&ctxProvider{ts}), logger)
	router.AuthService = authSvc
	router.TokenService = tokens
	router.UserService = &service.UserService{Store: st, Tokens: tokens, Audit: audit}
	router.AuditService = &service.AuditService{Store: st}
	router.Verifier = verifier
	router.Detector = authSvc.Detector
	router.ApplyRoutes()

	ts.srv = httptest.NewServer(router)
	t.Cleanup(ts.srv.Close)
	return ts
}

// ctxProvider hands back whatever profile the test configured.
type ctxProvider struct{ ts *testServer }

func (p *ctxProvider) Name() string { return "google" }

func (p *ctxProvider) Exchange(context.Context, string) (social.Profile, error) {
	if p.ts.profile.ID == "" {
		return social.Profile{}, social.ErrProviderExchange
	}
	return *p.ts.profile, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (ts *testServer) register(t *testing.T, name, email string) (token string, userID string) {
	t.Helper()

	code, env := ts.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "Sup3r-secret!",
	})
	require.Equal(t, http.StatusCreated, code)

	var data struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.Token, data.User.ID
}

func TestRegisterEndpoint(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name":     "Ada",
		"email":    "ada@example.com",
		"password": "Sup3r-secret!",
	})
	require.Equal(t, http.StatusCreated, code)
	require.True(t, env.Success)

	var data struct {
		Token string `json:"token"`
		User  struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	require.Equal(t, "ada@example.com", data.User.Email)
	require.Equal(t, "member", data.User.Role)
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name":     "",
		"email":    "not-an-email",
		"password": "short",
	})
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.False(t, env.Success)

	var errs map[string]string
	require.NoError(t, json.Unmarshal(env.Errors, &errs))
	require.Contains(t, errs, "name")
	require.Contains(t, errs, "email")
	require.Contains(t, errs, "password")
}

func TestLoginEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "Ada", "ada@example.com")

	code, env := ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "Sup3r-secret!",
	})
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	code, env = ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, code)
	require.False(t, env.Success)
}

func TestLoginRateLimitResponse(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "Ada", "ada@example.com")

	for i := 0; i < 5; i++ {
		code, _ := ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"email":    "ada@example.com",
			"password": "wrong-password",
		})
		require.Equal(t, http.StatusUnauthorized, code)
	}

	code, env := ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "Sup3r-secret!",
	})
	require.Equal(t, http.StatusUnprocessableEntity, code)

	var errs struct {
		RetryAfter int64 `json:"retry_after"`
	}
	require.NoError(t, json.Unmarshal(env.Errors, &errs))
	require.Greater(t, errs.RetryAfter, int64(0))
}

func TestSocialLoginEndpoint(t *testing.T) {
	ts := newTestServer(t)
	*ts.profile = social.Profile{ID: "g-123", Email: "jo@example.com", Name: "Jo"}

	code, env := ts.do(t, http.MethodPost, "/v1/auth/social", "", map[string]string{
		"provider":     "google",
		"access_token": "provider-token",
	})
	require.Equal(t, http.StatusOK, code)

	var data struct {
		Token string `json:"token"`
		User  struct {
			Provider string `json:"provider"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "google", data.User.Provider)

	// Unknown provider names are a validation failure.
	code, _ = ts.do(t, http.MethodPost, "/v1/auth/social", "", map[string]string{
		"provider":     "github",
		"access_token": "provider-token",
	})
	require.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestMeRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.do(t, http.MethodGet, "/v1/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)

	code, _ = ts.do(t, http.MethodGet, "/v1/me", "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, code)

	token, _ := ts.register(t, "Ada", "ada@example.com")
	code, env := ts.do(t, http.MethodGet, "/v1/me", token, nil)
	require.Equal(t, http.StatusOK, code)

	var data struct {
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "ada@example.com", data.Email)
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	ts := newTestServer(t)
	first, _ := ts.register(t, "Ada", "ada@example.com")

	code, env := ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":       "ada@example.com",
		"password":    "Sup3r-secret!",
		"device_name": "phone",
	})
	require.Equal(t, http.StatusOK, code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))

	code, env = ts.do(t, http.MethodGet, "/v1/me/sessions", login.Token, nil)
	require.Equal(t, http.StatusOK, code)

	var sessions []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Current bool   `json:"is_current"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sessions))
	require.Len(t, sessions, 2)

	var currentID, otherID string
	for _, s := range sessions {
		if s.Current {
			currentID = s.ID
		} else {
			otherID = s.ID
		}
	}
	require.NotEmpty(t, currentID)
	require.NotEmpty(t, otherID)

	// Revoking the current session is refused; the other one works.
	code, _ = ts.do(t, http.MethodDelete, "/v1/me/sessions/"+currentID, login.Token, nil)
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = ts.do(t, http.MethodDelete, "/v1/me/sessions/"+otherID, login.Token, nil)
	require.Equal(t, http.StatusOK, code)

	// The revoked token no longer authenticates.
	code, _ = ts.do(t, http.MethodGet, "/v1/me", first, nil)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestLogoutEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register(t, "Ada", "ada@example.com")

	code, _ := ts.do(t, http.MethodPost, "/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = ts.do(t, http.MethodGet, "/v1/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestAdminEndpointsForbiddenForMembers(t *testing.T) {
	ts := newTestServer(t)
	token, userID := ts.register(t, "Ada", "ada@example.com")

	// Members are blocked at the verified gate first; verify the account
	// to reach the policy check.
	markVerified(t, ts, userID)

	code, _ := ts.do(t, http.MethodGet, "/v1/users", token, nil)
	require.Equal(t, http.StatusForbidden, code)
	code, _ = ts.do(t, http.MethodGet, "/v1/security-events", token, nil)
	require.Equal(t, http.StatusForbidden, code)
}

func markVerified(t *testing.T, ts *testServer, userID string) {
	t.Helper()
	require.NoError(t, ts.store.Users().MarkEmailVerified(context.Background(), userID, time.Now().UTC()))
}

func TestAdminUserManagementEndpoints(t *testing.T) {
	ts := newTestServer(t)
	adminToken, adminID := ts.register(t, "Ada", "ada@example.com")
	_, bobID := ts.register(t, "Bob", "bob@example.com")

	markVerified(t, ts, adminID)
	require.NoError(t, ts.store.Users().SetRole(context.Background(), adminID, domain.RoleAdmin))

	code, env := ts.do(t, http.MethodGet, "/v1/users", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	var users []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 2)

	code, env = ts.do(t, http.MethodPut, fmt.Sprintf("/v1/users/%s/role", bobID), adminToken, map[string]string{"role": "manager"})
	require.Equal(t, http.StatusOK, code)
	var changed struct {
		Role string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &changed))
	require.Equal(t, "manager", changed.Role)

	code, _ = ts.do(t, http.MethodPut, fmt.Sprintf("/v1/users/%s/role", bobID), adminToken, map[string]string{"role": "emperor"})
	require.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = ts.do(t, http.MethodDelete, "/v1/users/"+bobID, adminToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = ts.do(t, http.MethodPost, fmt.Sprintf("/v1/users/%s/restore", bobID), adminToken, nil)
	require.Equal(t, http.StatusOK, code)

	// Deleting yourself is refused.
	code, _ = ts.do(t, http.MethodDelete, "/v1/users/"+adminID, adminToken, nil)
	require.Equal(t, http.StatusForbidden, code)
}

func TestSecurityEventsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	adminToken, adminID := ts.register(t, "Ada", "ada@example.com")
	markVerified(t, ts, adminID)
	require.NoError(t, ts.store.Users().SetRole(context.Background(), adminID, domain.RoleAdmin))

	code, env := ts.do(t, http.MethodGet, "/v1/security-events?kind=user_registered", adminToken, nil)
	require.Equal(t, http.StatusOK, code)

	var events []struct {
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &events))
	require.Len(t, events, 1)
	require.Equal(t, "user_registered", events[0].Kind)

	code, _ = ts.do(t, http.MethodGet, "/v1/security-events?kind=nonsense", adminToken, nil)
	require.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestPasswordChangeEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register(t, "Ada", "ada@example.com")

	code, _ := ts.do(t, http.MethodPut, "/v1/me/password", token, map[string]string{
		"current_password": "Sup3r-secret!",
		"new_password":     "Sup3r-secret!",
	})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodPut, "/v1/me/password", token, map[string]string{
		"current_password": "Sup3r-secret!",
		"new_password":     "An0ther-secret!",
	})
	require.Equal(t, http.StatusOK, code)

	// The current session keeps working after the change.
	code, _ = ts.do(t, http.MethodGet, "/v1/me", token, nil)
	require.Equal(t, http.StatusOK, code)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.srv.Client().Get(ts.srv.URL + "/livez")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ts.srv.Client().Get(ts.srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

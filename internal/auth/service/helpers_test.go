package service_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabernacle-io/congregate/internal/auth/cache"
	"github.com/tabernacle-io/congregate/internal/auth/domain"
	"github.com/tabernacle-io/congregate/internal/auth/service"
	"github.com/tabernacle-io/congregate/internal/auth/social"
	"github.com/tabernacle-io/congregate/internal/auth/store"
	"github.com/tabernacle-io/congregate/internal/auth/store/drivers/sqlite"
	"github.com/tabernacle-io/congregate/pkg/cryptox"
)

func init() {
	cryptox.SetPepperPath(filepath.Join(os.TempDir(), "congregate-service-test-pepper"))
}

// fixture wires every service against an in-memory database and cache.
type fixture struct {
	store    store.Store
	cache    *cache.Memory
	audit    *service.StoreAuditSink
	identity *service.IdentityService
	tokens   *service.TokenService
	limiter  *service.LoginLimiter
	detector *service.DeviceDetector
	auth     *service.AuthService
	users    *service.UserService
	verifier *service.VerificationService
	notifier *captureNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	mem := cache.NewMemory()
	audit := &service.StoreAuditSink{Store: st}
	notifier := &captureNotifier{}
	identity := &service.IdentityService{Store: st}
	tokens := &service.TokenService{Store: st, Audit: audit}
	limiter := &service.LoginLimiter{Cache: mem, MaxAttempts: 5, Window: time.Minute}
	detector := &service.DeviceDetector{
		Cache:    mem,
		Audit:    audit,
		Notifier: notifier,
		TTL:      90 * 24 * time.Hour,
	}
	verifier := service.NewVerificationService(st, tokens, audit, notifier, []byte("test-signing-secret"))

	return &fixture{
		store:    st,
		cache:    mem,
		audit:    audit,
		identity: identity,
		tokens:   tokens,
		limiter:  limiter,
		detector: detector,
		notifier: notifier,
		verifier: verifier,
		users:    &service.UserService{Store: st, Tokens: tokens, Audit: audit},
		auth: &service.AuthService{
			Store:    st,
			Identity: identity,
			Tokens:   tokens,
			Limiter:  limiter,
			Detector: detector,
			Audit:    audit,
			Notifier: notifier,
			Verifier: verifier,
		},
	}
}

type sentMail struct {
	kind  string
	user  domain.User
	token string
}

// captureNotifier records outgoing notifications for assertions.
type captureNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *captureNotifier) record(kind string, user domain.User, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: kind, user: user, token: token})
}

func (n *captureNotifier) VerificationEmail(_ context.Context, user domain.User, token string) {
	n.record("verification", user, token)
}

func (n *captureNotifier) PasswordResetEmail(_ context.Context, user domain.User, token string) {
	n.record("password_reset", user, token)
}

func (n *captureNotifier) NewDeviceLogin(_ context.Context, user domain.User, ip, _ string) {
	n.record("new_device", user, ip)
}

func (n *captureNotifier) byKind(kind string) []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []sentMail
	for _, m := range n.sent {
		if m.kind == kind {
			out = append(out, m)
		}
	}
	return out
}

const (
	testPassword = "Sup3r-secret!"
	testIP       = "203.0.113.7"
	testAgent    = "congregate-tests/1.0"
)

func testMeta() service.RequestMeta {
	return service.RequestMeta{IP: testIP, UserAgent: testAgent}
}

func registerUser(t *testing.T, f *fixture, name, email string) service.LoginResult {
	t.Helper()

	res, err := f.auth.Register(context.Background(), name, email, testPassword, "laptop", testMeta())
	require.NoError(t, err)
	return res
}

func makeAdmin(t *testing.T, f *fixture, userID string) domain.User {
	t.Helper()

	require.NoError(t, f.store.Users().SetRole(context.Background(), userID, domain.RoleAdmin))
	u, err := f.store.Users().GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	return u
}

func eventsOfKind(t *testing.T, f *fixture, kind domain.EventKind) []domain.SecurityEvent {
	t.Helper()

	events, err := f.store.SecurityEvents().ListEvents(context.Background(), store.EventFilter{Kind: kind, Limit: 100})
	require.NoError(t, err)
	return events
}

func staticProvider(name string, profile social.Profile, err error) social.Provider {
	return &fakeProvider{name: name, profile: profile, err: err}
}

type fakeProvider struct {
	name    string
	profile social.Profile
	err     error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Exchange(context.Context, string) (social.Profile, error) {
	if p.err != nil {
		return social.Profile{}, p.err
	}
	return p.profile, nil
}

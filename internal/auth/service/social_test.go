package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabernacle-io/congregate/internal/auth/domain"
	"github.com/tabernacle-io/congregate/internal/auth/service"
	"github.com/tabernacle-io/congregate/internal/auth/social"
	"github.com/tabernacle-io/congregate/internal/auth/store"
)

func googleRegistry(profile social.Profile) *social.Registry {
	return social.NewRegistry(staticProvider("google", profile, nil))
}

func TestSocialLoginCreatesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registry := googleRegistry(social.Profile{
		ID:     "g-123",
		Email:  "Jo@Example.com",
		Name:   "Jo Bloggs",
		Avatar: "https://lh3.example.com/jo.jpg",
	})

	res, err := f.auth.SocialLogin(ctx, registry, "google", "token", "phone", testMeta())
	require.NoError(t, err)
	require.Equal(t, "jo@example.com", res.User.Email)
	require.Equal(t, "Jo Bloggs", res.User.Name)
	require.Equal(t, "google", res.User.Provider)
	require.Equal(t, "g-123", res.User.ProviderID)
	require.Equal(t, domain.RoleMember, res.User.Role)
	require.NotNil(t, res.User.AvatarURL)

	// Provider-asserted addresses count as verified.
	require.True(t, res.User.IsVerified())

	// The random placeholder password is not usable for logins.
	_, err = f.auth.Login(ctx, "jo@example.com", testPassword, "", testMeta())
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, _, err = f.tokens.Authenticate(ctx, res.Plaintext)
	require.NoError(t, err)
}

func TestSocialLoginIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registry := googleRegistry(social.Profile{ID: "g-123", Email: "jo@example.com", Name: "Jo"})

	first, err := f.auth.SocialLogin(ctx, registry, "google", "token", "", testMeta())
	require.NoError(t, err)
	second, err := f.auth.SocialLogin(ctx, registry, "google", "token", "", testMeta())
	require.NoError(t, err)

	require.Equal(t, first.User.ID, second.User.ID)

	users, err := f.store.Users().ListUsers(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, users, 1)

	// Each login still issues its own session.
	tokens, err := f.store.SessionTokens().ListUserTokens(ctx, first.User.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
}

func TestSocialLoginLinksExistingLocalAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	local := registerUser(t, f, "Ada", "ada@example.com")

	registry := googleRegistry(social.Profile{ID: "g-ada", Email: "ada@example.com", Name: "Ada G"})

	res, err := f.auth.SocialLogin(ctx, registry, "google", "token", "", testMeta())
	require.NoError(t, err)
	require.Equal(t, local.User.ID, res.User.ID)
	require.Equal(t, "google", res.User.Provider)
	require.Equal(t, "g-ada", res.User.ProviderID)

	// The local name and password survive linking, and the address counts
	// as verified once the provider confirmed it.
	require.Equal(t, "Ada", res.User.Name)
	require.True(t, res.User.IsVerified())
	_, err = f.auth.Login(ctx, "ada@example.com", testPassword, "", testMeta())
	require.NoError(t, err)
}

func TestSocialLoginDifferentProviderRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	google := googleRegistry(social.Profile{ID: "g-111", Email: "jo@example.com"})
	_, err := f.auth.SocialLogin(ctx, google, "google", "token", "", testMeta())
	require.NoError(t, err)

	// One social identity per account: an apple identity sharing the email
	// must not attach to the google-linked account.
	apple := social.NewRegistry(staticProvider("apple", social.Profile{
		ID:    "001234.abcdef",
		Email: "jo@example.com",
	}, nil))
	_, err = f.auth.SocialLogin(ctx, apple, "apple", "token", "", testMeta())
	require.ErrorIs(t, err, service.ErrProviderAlreadyLinked)

	user, err := f.store.Users().GetUserByEmail(ctx, "jo@example.com")
	require.NoError(t, err)
	require.Equal(t, "google", user.Provider)
	require.Equal(t, "g-111", user.ProviderID)
}

func TestSocialLoginNeverRelinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := googleRegistry(social.Profile{ID: "g-111", Email: "jo@example.com"})
	_, err := f.auth.SocialLogin(ctx, first, "google", "token", "", testMeta())
	require.NoError(t, err)

	// Same email, same provider, different provider id: rejected, and the
	// stored link is untouched.
	second := googleRegistry(social.Profile{ID: "g-222", Email: "jo@example.com"})
	_, err = f.auth.SocialLogin(ctx, second, "google", "token", "", testMeta())
	require.ErrorIs(t, err, service.ErrProviderAlreadyLinked)

	user, err := f.store.Users().GetUserByEmail(ctx, "jo@example.com")
	require.NoError(t, err)
	require.Equal(t, "g-111", user.ProviderID)
}

func TestSocialLoginEmailRequired(t *testing.T) {
	f := newFixture(t)

	registry := googleRegistry(social.Profile{ID: "g-123"})
	_, err := f.auth.SocialLogin(context.Background(), registry, "google", "token", "", testMeta())
	require.ErrorIs(t, err, service.ErrSocialEmailRequired)

	// Nothing was created.
	_, err = f.store.Users().GetUserByProvider(context.Background(), "google", "g-123")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSocialLoginExchangeFailure(t *testing.T) {
	f := newFixture(t)

	registry := social.NewRegistry(staticProvider("google", social.Profile{}, social.ErrProviderExchange))
	_, err := f.auth.SocialLogin(context.Background(), registry, "google", "bad-token", "", testMeta())
	require.ErrorIs(t, err, service.ErrSocialLogin)
}

func TestSocialLoginUnknownProvider(t *testing.T) {
	f := newFixture(t)

	registry := googleRegistry(social.Profile{ID: "g-123", Email: "jo@example.com"})
	_, err := f.auth.SocialLogin(context.Background(), registry, "github", "token", "", testMeta())
	require.ErrorIs(t, err, social.ErrUnknownProvider)
}

func TestSocialLoginPlaceholderName(t *testing.T) {
	f := newFixture(t)

	registry := social.NewRegistry(staticProvider("apple", social.Profile{
		ID:    "001234.abcdef",
		Email: "jo@privaterelay.appleid.com",
	}, nil))

	res, err := f.auth.SocialLogin(context.Background(), registry, "apple", "token", "", testMeta())
	require.NoError(t, err)
	require.Equal(t, "jo", res.User.Name)
}

func TestSocialLoginFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A provider id colliding with an existing link aborts inside the
	// transaction; no session rows may survive.
	first := googleRegistry(social.Profile{ID: "g-111", Email: "jo@example.com"})
	res, err := f.auth.SocialLogin(ctx, first, "google", "token", "", testMeta())
	require.NoError(t, err)

	before, err := f.store.SessionTokens().ListUserTokens(ctx, res.User.ID)
	require.NoError(t, err)

	second := googleRegistry(social.Profile{ID: "g-222", Email: "jo@example.com"})
	_, err = f.auth.SocialLogin(ctx, second, "google", "token", "", testMeta())
	require.ErrorIs(t, err, service.ErrProviderAlreadyLinked)

	after, err := f.store.SessionTokens().ListUserTokens(ctx, res.User.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before))
}

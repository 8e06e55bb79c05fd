package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tabernacle-io/congregate/internal/auth/domain"
	"github.com/tabernacle-io/congregate/internal/auth/social"
	"github.com/tabernacle-io/congregate/internal/auth/store"
	"github.com/tabernacle-io/congregate/pkg/cryptox"
	"github.com/tabernacle-io/congregate/pkg/idx"
)

// IdentityService owns user records: local registration and resolution of
// social profiles into accounts.
type IdentityService struct {
	Store store.Store
}

// CreateLocalUser registers a password account with the default role. The
// email must be unused; ErrDuplicateEmail otherwise.
func (s *IdentityService) CreateLocalUser(ctx context.Context, name, email, password string) (domain.User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New().String(),
		Name:         strings.TrimSpace(name),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Role:         domain.DefaultRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, err
	}
	return user, nil
}

// FindByEmail resolves a live account by address.
func (s *IdentityService) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
}

// FindByProvider resolves a live account by its social identity pair.
func (s *IdentityService) FindByProvider(ctx context.Context, provider, providerID string) (domain.User, error) {
	return s.Store.Users().GetUserByProvider(ctx, provider, providerID)
}

// AttachSocialToUser links a social identity onto an existing account.
func (s *IdentityService) AttachSocialToUser(ctx context.Context, user domain.User, provider string, profile social.Profile) (domain.User, error) {
	return attachSocialToUser(ctx, s.Store, user, provider, profile)
}

// FindOrCreateFromSocial maps a provider profile onto an account:
//
//  1. a user already linked to (provider, id) wins outright;
//  2. otherwise an existing account with the profile's email gets the
//     link attached, unless it already carries a different social
//     identity (ErrProviderAlreadyLinked);
//  3. otherwise a fresh account is created, pre-verified, with an
//     unusable random password.
//
// Runs inside the supplied transaction so the resolve and any token
// issuance that follows commit together.
func (s *IdentityService) FindOrCreateFromSocial(ctx context.Context, tx store.Tx, provider string, profile social.Profile) (domain.User, error) {
	return findOrCreateFromSocial(ctx, tx, provider, profile)
}

func findOrCreateFromSocial(ctx context.Context, st store.Store, provider string, profile social.Profile) (domain.User, error) {
	user, err := st.Users().GetUserByProvider(ctx, provider, profile.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, err
	}

	if profile.Email == "" {
		return domain.User{}, ErrSocialEmailRequired
	}
	email := normalizeEmail(profile.Email)

	existing, err := st.Users().GetUserByEmail(ctx, email)
	if err == nil {
		return attachSocialToUser(ctx, st, existing, provider, profile)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, err
	}

	return createFromSocial(ctx, st, provider, profile, email)
}

// attachSocialToUser binds a social identity to an existing account. An
// account holds at most one social identity; a different link already in
// place, whatever its provider, is never overwritten. Linking a
// provider-confirmed address also counts as verifying it.
func attachSocialToUser(ctx context.Context, st store.Store, user domain.User, provider string, profile social.Profile) (domain.User, error) {
	if user.Provider != "" {
		if user.Provider == provider && user.ProviderID == profile.ID {
			return user, nil
		}
		return domain.User{}, ErrProviderAlreadyLinked
	}

	if err := st.Users().SetProviderLink(ctx, user.ID, provider, profile.ID); err != nil {
		return domain.User{}, err
	}
	user.Provider = provider
	user.ProviderID = profile.ID

	if user.AvatarURL == nil && profile.Avatar != "" {
		if err := st.Users().UpdateAvatarURL(ctx, user.ID, profile.Avatar); err != nil {
			return domain.User{}, err
		}
		user.AvatarURL = &profile.Avatar
	}

	if !user.IsVerified() {
		now := time.Now().UTC()
		if err := st.Users().MarkEmailVerified(ctx, user.ID, now); err != nil {
			return domain.User{}, err
		}
		user.EmailVerified = &now
	}

	return user, nil
}

func createFromSocial(ctx context.Context, st store.Store, provider string, profile social.Profile, email string) (domain.User, error) {
	// The account has no usable password; a random secret keeps the
	// password column non-empty without granting a login path.
	hash, err := cryptox.HashPassword(cryptox.MustGenerateToken(cryptox.TokenSize256))
	if err != nil {
		return domain.User{}, fmt.Errorf("hash placeholder password: %w", err)
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = placeholderName(email)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:            idx.New().String(),
		Name:          name,
		Email:         email,
		PasswordHash:  hash,
		Role:          domain.DefaultRole,
		Provider:      provider,
		ProviderID:    profile.ID,
		EmailVerified: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if profile.Avatar != "" {
		user.AvatarURL = &profile.Avatar
	}

	if err := st.Users().CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// placeholderName derives a display name from the local part of the email
// for providers that withhold names (Apple after the first authorization).
func placeholderName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "New User"
	}
	return local
}

package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabernacle-io/congregate/internal/auth/domain"
	"github.com/tabernacle-io/congregate/internal/auth/service"
	"github.com/tabernacle-io/congregate/internal/auth/store"
)

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := registerUser(t, f, "Ada", "ada@example.com")

	name := "Ada Lovelace"
	avatar := "https://cdn.example.com/ada.png"
	updated, err := f.users.UpdateProfile(ctx, res.User, service.ProfileUpdate{Name: &name, AvatarURL: &avatar})
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", updated.Name)
	require.NotNil(t, updated.AvatarURL)

	stored, err := f.store.Users().GetUserByID(ctx, res.User.ID)
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", stored.Name)

	require.Len(t, eventsOfKind(t, f, domain.EventProfileUpdated), 1)
}

func TestUpdateProfileNoChanges(t *testing.T) {
	f := newFixture(t)
	res := registerUser(t, f, "Ada", "ada@example.com")

	_, err := f.users.UpdateProfile(context.Background(), res.User, service.ProfileUpdate{})
	require.NoError(t, err)
	require.Empty(t, eventsOfKind(t, f, domain.EventProfileUpdated))
}

func TestListUsersAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := registerUser(t, f, "Ada", "ada@example.com")
	registerUser(t, f, "Bob", "bob@example.com")

	_, err := f.users.List(ctx, ada.User, 10, 0)
	require.ErrorIs(t, err, service.ErrForbidden)

	admin := makeAdmin(t, f, ada.User.ID)
	users, err := f.users.List(ctx, admin, 10, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
}

func TestChangeRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := registerUser(t, f, "Ada", "ada@example.com")
	bob := registerUser(t, f, "Bob", "bob@example.com")
	admin := makeAdmin(t, f, ada.User.ID)

	updated, err := f.users.ChangeRole(ctx, admin, bob.User.ID, domain.RoleManager)
	require.NoError(t, err)
	require.Equal(t, domain.RoleManager, updated.Role)

	events := eventsOfKind(t, f, domain.EventRoleChanged)
	require.Len(t, events, 1)
	require.Equal(t, "member", events[0].Properties["from"])
	require.Equal(t, "manager", events[0].Properties["to"])
}

func TestChangeRoleSelfDemotionRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := registerUser(t, f, "Ada", "ada@example.com")
	admin := makeAdmin(t, f, ada.User.ID)

	_, err := f.users.ChangeRole(ctx, admin, admin.ID, domain.RoleMember)
	require.ErrorIs(t, err, service.ErrSelfAction)

	// Reasserting your own admin role is a no-op, not an error.
	updated, err := f.users.ChangeRole(ctx, admin, admin.ID, domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, updated.Role)
}

func TestChangeRoleNonAdmin(t *testing.T) {
	f := newFixture(t)
	ada := registerUser(t, f, "Ada", "ada@example.com")
	bob := registerUser(t, f, "Bob", "bob@example.com")

	_, err := f.users.ChangeRole(context.Background(), ada.User, bob.User.ID, domain.RoleManager)
	require.ErrorIs(t, err, service.ErrForbidden)
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := registerUser(t, f, "Ada", "ada@example.com")
	bob := registerUser(t, f, "Bob", "bob@example.com")
	admin := makeAdmin(t, f, ada.User.ID)

	require.NoError(t, f.users.Delete(ctx, admin, bob.User.ID))

	// The row survives soft-deleted; sessions and logins do not.
	_, err := f.store.Users().GetUserByID(ctx, bob.User.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	deleted, err := f.store.Users().GetUserByIDAny(ctx, bob.User.ID)
	require.NoError(t, err)
	require.True(t, deleted.IsDeleted())

	_, _, err = f.tokens.Authenticate(ctx, bob.Plaintext)
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	require.Len(t, eventsOfKind(t, f, domain.EventUserDeleted), 1)
}

func TestDeleteSelfRefused(t *testing.T) {
	f := newFixture(t)
	ada := registerUser(t, f, "Ada", "ada@example.com")
	admin := makeAdmin(t, f, ada.User.ID)

	err := f.users.Delete(context.Background(), admin, admin.ID)
	require.ErrorIs(t, err, service.ErrSelfAction)
}

func TestRestoreUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := registerUser(t, f, "Ada", "ada@example.com")
	bob := registerUser(t, f, "Bob", "bob@example.com")
	admin := makeAdmin(t, f, ada.User.ID)

	require.NoError(t, f.users.Delete(ctx, admin, bob.User.ID))

	restored, err := f.users.Restore(ctx, admin, bob.User.ID)
	require.NoError(t, err)
	require.False(t, restored.IsDeleted())

	// Restored accounts can log in again with their old password.
	_, err = f.auth.Login(ctx, "bob@example.com", testPassword, "", testMeta())
	require.NoError(t, err)

	require.Len(t, eventsOfKind(t, f, domain.EventUserRestored), 1)
}

func TestRestoreNotDeleted(t *testing.T) {
	f := newFixture(t)
	ada := registerUser(t, f, "Ada", "ada@example.com")
	bob := registerUser(t, f, "Bob", "bob@example.com")
	admin := makeAdmin(t, f, ada.User.ID)

	_, err := f.users.Restore(context.Background(), admin, bob.User.ID)
	require.ErrorIs(t, err, service.ErrNotDeleted)
}

func TestAuditListAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := registerUser(t, f, "Ada", "ada@example.com")
	auditSvc := &service.AuditService{Store: f.store}

	_, err := auditSvc.List(ctx, ada.User, store.EventFilter{})
	require.ErrorIs(t, err, service.ErrForbidden)

	admin := makeAdmin(t, f, ada.User.ID)
	events, err := auditSvc.List(ctx, admin, store.EventFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, events)

	// Kind filtering narrows the result.
	filtered, err := auditSvc.List(ctx, admin, store.EventFilter{Kind: domain.EventUserRegistered})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
}

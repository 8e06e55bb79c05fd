package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tabernacle-io/congregate/internal/auth/domain"
	"github.com/tabernacle-io/congregate/internal/auth/store"
)

// ProfileUpdate carries the self-service mutable fields. Nil means leave
// the field untouched.
type ProfileUpdate struct {
	Name      *string
	AvatarURL *string
}

// UserService covers profile self-service and the admin user management
// surface. Administrative methods consult domain.CanPerform before
// touching anything.
type UserService struct {
	Store  store.Store
	Tokens *TokenService
	Audit  AuditSink
}

// UpdateProfile applies the fields set in upd to the user's own record.
func (s *UserService) UpdateProfile(ctx context.Context, user domain.User, upd ProfileUpdate) (domain.User, error) {
	changed := map[string]string{}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if err := s.Store.Users().UpdateName(ctx, user.ID, name); err != nil {
			return domain.User{}, err
		}
		user.Name = name
		changed["name"] = name
	}
	if upd.AvatarURL != nil {
		if err := s.Store.Users().UpdateAvatarURL(ctx, user.ID, *upd.AvatarURL); err != nil {
			return domain.User{}, err
		}
		user.AvatarURL = upd.AvatarURL
		changed["avatar_url"] = *upd.AvatarURL
	}

	if len(changed) > 0 {
		s.Audit.Record(ctx, domain.EventProfileUpdated, user.ID, user.ID, changed)
	}
	return user, nil
}

// List returns the active user directory for administrators.
func (s *UserService) List(ctx context.Context, actor domain.User, limit, offset int) ([]domain.User, error) {
	if !domain.CanPerform(actor, domain.ActionListUsers, nil) {
		return nil, ErrForbidden
	}
	return s.Store.Users().ListUsers(ctx, limit, offset)
}

// Get returns one user, including soft-deleted ones so admins can inspect
// accounts pending restore.
func (s *UserService) Get(ctx context.Context, actor domain.User, userID string) (domain.User, error) {
	if !domain.CanPerform(actor, domain.ActionViewUser, nil) {
		return domain.User{}, ErrForbidden
	}
	return s.Store.Users().GetUserByIDAny(ctx, userID)
}

// ChangeRole moves a user to another role. An admin may promote anyone,
// including themselves, but demoting yourself is rejected so the system
// cannot be left without its last administrator by accident.
func (s *UserService) ChangeRole(ctx context.Context, actor domain.User, userID string, role domain.Role) (domain.User, error) {
	target, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	if !domain.CanPerform(actor, domain.ActionChangeRole, &target) {
		return domain.User{}, ErrForbidden
	}
	if target.ID == actor.ID && role != domain.RoleAdmin {
		return domain.User{}, ErrSelfAction
	}

	if target.Role == role {
		return target, nil
	}

	previous := target.Role
	if err := s.Store.Users().SetRole(ctx, userID, role); err != nil {
		return domain.User{}, err
	}
	target.Role = role

	s.Audit.Record(ctx, domain.EventRoleChanged, actor.ID, target.ID, map[string]string{
		"from": string(previous),
		"to":   string(role),
	})
	return target, nil
}

// Delete soft-deletes an account and revokes its sessions. The row stays
// for restore; the sessions do not.
func (s *UserService) Delete(ctx context.Context, actor domain.User, userID string) error {
	target, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if !domain.CanPerform(actor, domain.ActionDeleteUser, &target) {
		if target.ID == actor.ID {
			return ErrSelfAction
		}
		return ErrForbidden
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().SoftDeleteUser(ctx, userID, time.Now().UTC()); err != nil {
			return err
		}
		_, err := tx.SessionTokens().DeleteUserTokens(ctx, userID)
		return err
	})
	if err != nil {
		return err
	}

	s.Audit.Record(ctx, domain.EventUserDeleted, actor.ID, target.ID, nil)
	return nil
}

// Restore clears the soft-delete marker. Restoring an account that is not
// deleted is ErrNotDeleted rather than a silent success, so accidental
// double-clicks surface.
func (s *UserService) Restore(ctx context.Context, actor domain.User, userID string) (domain.User, error) {
	if !domain.CanPerform(actor, domain.ActionRestoreUser, nil) {
		return domain.User{}, ErrForbidden
	}

	target, err := s.Store.Users().GetUserByIDAny(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if !target.IsDeleted() {
		return domain.User{}, ErrNotDeleted
	}

	if err := s.Store.Users().RestoreUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotDeleted
		}
		return domain.User{}, err
	}
	target.DeletedAt = nil

	s.Audit.Record(ctx, domain.EventUserRestored, actor.ID, target.ID, nil)
	return target, nil
}

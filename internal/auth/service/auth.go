package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tabernacle-io/congregate/internal/auth/domain"
	"github.com/tabernacle-io/congregate/internal/auth/social"
	"github.com/tabernacle-io/congregate/internal/auth/store"
	"github.com/tabernacle-io/congregate/pkg/cryptox"
	"github.com/tabernacle-io/congregate/pkg/slogx"
)

// RequestMeta carries the client attributes of the request being served.
// Handlers populate it once; services never reach into ambient state for
// the address or agent.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// LoginResult is what a successful authentication hands back to the
// transport layer. Plaintext is shown exactly once.
type LoginResult struct {
	User      domain.User
	Token     domain.SessionToken
	Plaintext string
}

// AuthService drives the credential lifecycle: registration, password and
// social logins, logout and password changes.
type AuthService struct {
	Store    store.Store
	Identity *IdentityService
	Tokens   *TokenService
	Limiter  *LoginLimiter
	Detector *DeviceDetector
	Audit    AuditSink
	Notifier Notifier
	Verifier *VerificationService
}

// Register creates a local account, issues its first session and queues
// the verification email.
func (s *AuthService) Register(ctx context.Context, name, email, password, deviceName string, meta RequestMeta) (LoginResult, error) {
	user, err := s.Identity.CreateLocalUser(ctx, name, email, password)
	if err != nil {
		return LoginResult{}, err
	}

	plaintext, token, err := s.Tokens.Issue(ctx, user.ID, deviceName)
	if err != nil {
		return LoginResult{}, err
	}

	s.Audit.Record(ctx, domain.EventUserRegistered, user.ID, user.ID, map[string]string{"ip": meta.IP})

	if s.Verifier != nil && s.Notifier != nil {
		if vt, err := s.Verifier.IssueEmailToken(user); err == nil {
			s.Notifier.VerificationEmail(ctx, user, vt)
		} else {
			slogx.FromContext(ctx).Error("verification token not issued", slog.Any("error", err))
		}
	}

	return LoginResult{User: user, Token: token, Plaintext: plaintext}, nil
}

// Login authenticates email and password. The rate limit gate runs before
// any credential work, so a locked-out caller is rejected even with the
// right password; failures count toward the limit, successes clear it.
func (s *AuthService) Login(ctx context.Context, email, password, deviceName string, meta RequestMeta) (LoginResult, error) {
	if err := s.Limiter.Check(ctx, email, meta.IP); err != nil {
		return LoginResult{}, err
	}

	user, err := s.Identity.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.recordFailure(ctx, email, "", meta)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		s.recordFailure(ctx, email, user.ID, meta)
		return LoginResult{}, ErrInvalidCredentials
	}

	s.Limiter.Clear(ctx, email, meta.IP)

	plaintext, token, err := s.Tokens.Issue(ctx, user.ID, deviceName)
	if err != nil {
		return LoginResult{}, err
	}

	now := time.Now().UTC()
	if err := s.Store.Users().StampLastLogin(ctx, user.ID, now, meta.IP); err != nil {
		slogx.FromContext(ctx).Warn("last login not stamped", slog.String("user_id", user.ID), slog.Any("error", err))
	} else {
		user.LastLoginAt = &now
		user.LastLoginIP = meta.IP
	}

	s.Audit.Record(ctx, domain.EventUserLoggedIn, user.ID, user.ID, map[string]string{
		"ip":         meta.IP,
		"user_agent": meta.UserAgent,
	})
	if s.Detector != nil {
		s.Detector.Observe(ctx, user, meta.IP, meta.UserAgent)
	}

	return LoginResult{User: user, Token: token, Plaintext: plaintext}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, email, subjectID string, meta RequestMeta) {
	s.Limiter.Hit(ctx, email, meta.IP)
	s.Audit.Record(ctx, domain.EventLoginFailed, "", subjectID, map[string]string{
		"email": normalizeEmail(email),
		"ip":    meta.IP,
	})
}

// SocialLogin exchanges a provider token for a session. Resolution and
// issuance share one transaction; a failure anywhere leaves no partial
// account behind.
func (s *AuthService) SocialLogin(ctx context.Context, providers *social.Registry, provider, accessToken, deviceName string, meta RequestMeta) (LoginResult, error) {
	profile, err := providers.Exchange(ctx, provider, accessToken)
	if err != nil {
		if errors.Is(err, social.ErrUnknownProvider) {
			return LoginResult{}, err
		}
		slogx.FromContext(ctx).Info("social exchange rejected", slog.String("provider", provider), slog.Any("error", err))
		return LoginResult{}, fmt.Errorf("%w: %v", ErrSocialLogin, err)
	}

	var result LoginResult
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := findOrCreateFromSocial(ctx, tx, provider, profile)
		if err != nil {
			return err
		}

		plaintext, token, err := issueOn(ctx, tx, user.ID, deviceName)
		if err != nil {
			return err
		}

		if err := tx.Users().StampLastLogin(ctx, user.ID, time.Now().UTC(), meta.IP); err != nil {
			return err
		}

		result = LoginResult{User: user, Token: token, Plaintext: plaintext}
		return nil
	})
	if err != nil {
		return LoginResult{}, err
	}

	s.Audit.Record(ctx, domain.EventUserLoggedIn, result.User.ID, result.User.ID, map[string]string{
		"ip":       meta.IP,
		"provider": provider,
	})
	if s.Detector != nil {
		s.Detector.Observe(ctx, result.User, meta.IP, meta.UserAgent)
	}

	return result, nil
}

// Logout revokes the session that authenticated the request.
func (s *AuthService) Logout(ctx context.Context, user domain.User, token domain.SessionToken) error {
	if err := s.Store.SessionTokens().DeleteToken(ctx, token.ID); err != nil {
		return err
	}
	s.Audit.Record(ctx, domain.EventUserLoggedOut, user.ID, user.ID, nil)
	return nil
}

// LogoutAll revokes every session of the user, returning the count.
func (s *AuthService) LogoutAll(ctx context.Context, user domain.User) (int64, error) {
	count, err := s.Tokens.RevokeAll(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	s.Audit.Record(ctx, domain.EventUserLoggedOut, user.ID, user.ID, map[string]string{
		"revoked": fmt.Sprintf("%d", count),
	})
	return count, nil
}

// ChangePassword rotates the password after verifying the current one.
// Reusing the current password is rejected, and every other session is
// revoked so a stolen token does not outlive the rotation.
func (s *AuthService) ChangePassword(ctx context.Context, user domain.User, currentToken domain.SessionToken, current, next string) error {
	if err := cryptox.VerifyPassword(current, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}
	if cryptox.VerifyPassword(next, user.PasswordHash) == nil {
		return ErrPasswordReused
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	revoked, err := s.Tokens.RevokeAllExcept(ctx, user.ID, currentToken.ID)
	if err != nil {
		slogx.FromContext(ctx).Error("sessions not revoked after password change", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	s.Audit.Record(ctx, domain.EventPasswordChanged, user.ID, user.ID, map[string]string{
		"revoked_sessions": fmt.Sprintf("%d", revoked),
	})
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tabernacle-io/congregate/internal/auth/domain"
	"github.com/tabernacle-io/congregate/internal/auth/store"
	"github.com/tabernacle-io/congregate/pkg/cryptox"
)

const (
	purposeEmailVerify   = "email_verify"
	purposePasswordReset = "password_reset"

	// Verification links live longer than reset links; a reset token is a
	// password-equivalent credential.
	emailTokenTTL = 24 * time.Hour
	resetTokenTTL = time.Hour
)

// VerificationService mints and redeems the signed single-purpose tokens
// behind email verification and password reset links. Tokens are HS256
// JWTs bound to a purpose and the user id; they carry no session rights.
type VerificationService struct {
	Store    store.Store
	Tokens   *TokenService
	Audit    AuditSink
	Notifier Notifier
	Secret   []byte
	now      func() time.Time
}

func NewVerificationService(st store.Store, tokens *TokenService, audit AuditSink, notifier Notifier, secret []byte) *VerificationService {
	return &VerificationService{
		Store:    st,
		Tokens:   tokens,
		Audit:    audit,
		Notifier: notifier,
		Secret:   secret,
		now:      time.Now,
	}
}

type purposeClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

func (s *VerificationService) mint(user domain.User, purpose string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := purposeClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

func (s *VerificationService) parse(token, purpose string) (string, error) {
	var claims purposeClaims
	_, err := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	).ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.Secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResetToken, err)
	}
	if claims.Purpose != purpose || claims.Subject == "" {
		return "", ErrInvalidResetToken
	}
	return claims.Subject, nil
}

// IssueEmailToken mints a verification token for the user's address.
func (s *VerificationService) IssueEmailToken(user domain.User) (string, error) {
	return s.mint(user, purposeEmailVerify, emailTokenTTL)
}

// ResendVerification mints and queues a fresh verification email. Already
// verified accounts are a no-op.
func (s *VerificationService) ResendVerification(ctx context.Context, user domain.User) error {
	if user.IsVerified() {
		return nil
	}
	token, err := s.IssueEmailToken(user)
	if err != nil {
		return err
	}
	s.Notifier.VerificationEmail(ctx, user, token)
	return nil
}

// VerifyEmail redeems a verification token and stamps the address
// confirmed. Redeeming twice is harmless.
func (s *VerificationService) VerifyEmail(ctx context.Context, token string) (domain.User, error) {
	userID, err := s.parse(token, purposeEmailVerify)
	if err != nil {
		return domain.User{}, err
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidResetToken
		}
		return domain.User{}, err
	}
	if user.IsVerified() {
		return user, nil
	}

	now := s.now().UTC()
	if err := s.Store.Users().MarkEmailVerified(ctx, user.ID, now); err != nil {
		return domain.User{}, err
	}
	user.EmailVerified = &now

	s.Audit.Record(ctx, domain.EventEmailVerified, user.ID, user.ID, nil)
	return user, nil
}

// RequestReset queues a password reset email. Unknown addresses succeed
// silently so the endpoint cannot be used to probe for accounts.
func (s *VerificationService) RequestReset(ctx context.Context, email string, meta RequestMeta) error {
	user, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	token, err := s.mint(user, purposePasswordReset, resetTokenTTL)
	if err != nil {
		return err
	}

	s.Audit.Record(ctx, domain.EventPasswordResetRequested, "", user.ID, map[string]string{"ip": meta.IP})
	s.Notifier.PasswordResetEmail(ctx, user, token)
	return nil
}

// Reset redeems a reset token, sets the new password and revokes every
// session. Whoever held a token for the account holds nothing afterwards.
func (s *VerificationService) Reset(ctx context.Context, token, newPassword string) error {
	userID, err := s.parse(token, purposePasswordReset)
	if err != nil {
		return err
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}
	if _, err := s.Tokens.RevokeAll(ctx, user.ID); err != nil {
		return err
	}

	s.Audit.Record(ctx, domain.EventPasswordReset, user.ID, user.ID, nil)
	return nil
}

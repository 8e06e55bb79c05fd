package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tabernacle-io/congregate/internal/auth/domain"
	"github.com/tabernacle-io/congregate/internal/auth/store"
	"github.com/tabernacle-io/congregate/pkg/cryptox"
	"github.com/tabernacle-io/congregate/pkg/idx"
	"github.com/tabernacle-io/congregate/pkg/slogx"
)

// DefaultDeviceName labels sessions issued without an explicit device name.
const DefaultDeviceName = "mobile-app"

// TokenService issues and authenticates opaque session tokens. The bearer
// credential is "<id>|<secret>"; the store holds only the secret's
// fingerprint.
type TokenService struct {
	Store store.Store

	// Audit, when set, records session revocations.
	Audit AuditSink
}

// Session is a device session as presented to its owner. Current marks
// the session whose token authenticated the request.
type Session struct {
	Token   domain.SessionToken
	Current bool
}

// Issue creates a session for the user and returns the one-time plaintext
// credential alongside the stored record.
func (s *TokenService) Issue(ctx context.Context, userID, deviceName string) (string, domain.SessionToken, error) {
	return issueOn(ctx, s.Store, userID, deviceName)
}

// issueOn is the transaction-composable variant; st may be a Tx.
func issueOn(ctx context.Context, st store.Store, userID, deviceName string) (string, domain.SessionToken, error) {
	deviceName = strings.TrimSpace(deviceName)
	if deviceName == "" {
		deviceName = DefaultDeviceName
	}

	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", domain.SessionToken{}, fmt.Errorf("generate session secret: %w", err)
	}

	token := domain.SessionToken{
		ID:        idx.New().String(),
		UserID:    userID,
		Name:      deviceName,
		TokenHash: cryptox.FingerprintToken(secret),
		CreatedAt: time.Now().UTC(),
	}
	if err := st.SessionTokens().CreateToken(ctx, token); err != nil {
		return "", domain.SessionToken{}, err
	}

	return token.ID + "|" + secret, token, nil
}

// Authenticate resolves a bearer credential to its owner and session.
// Every failure mode collapses to ErrInvalidCredentials so callers leak
// nothing about which part failed.
func (s *TokenService) Authenticate(ctx context.Context, credential string) (domain.User, domain.SessionToken, error) {
	id, secret, ok := strings.Cut(credential, "|")
	if !ok || id == "" || secret == "" {
		return domain.User{}, domain.SessionToken{}, ErrInvalidCredentials
	}

	token, err := s.Store.SessionTokens().GetToken(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.SessionToken{}, ErrInvalidCredentials
		}
		return domain.User{}, domain.SessionToken{}, err
	}

	if !cryptox.FingerprintsEqual(cryptox.FingerprintToken(secret), token.TokenHash) {
		return domain.User{}, domain.SessionToken{}, ErrInvalidCredentials
	}

	user, err := s.Store.Users().GetUserByID(ctx, token.UserID)
	if err != nil {
		// Soft-deleted owners fall out here: their tokens stop working
		// even though the rows still exist.
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.SessionToken{}, ErrInvalidCredentials
		}
		return domain.User{}, domain.SessionToken{}, err
	}

	now := time.Now().UTC()
	if err := s.Store.SessionTokens().TouchToken(ctx, token.ID, now); err != nil {
		slogx.FromContext(ctx).Warn("session touch failed", slog.String("token_id", token.ID), slog.Any("error", err))
	} else {
		token.LastUsedAt = &now
	}

	return user, token, nil
}

// Sessions lists the user's device sessions, marking the one that matches
// currentTokenID.
func (s *TokenService) Sessions(ctx context.Context, userID, currentTokenID string) ([]Session, error) {
	tokens, err := s.Store.SessionTokens().ListUserTokens(ctx, userID)
	if err != nil {
		return nil, err
	}

	sessions := make([]Session, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, Session{Token: t, Current: t.ID == currentTokenID})
	}
	return sessions, nil
}

// RevokeOne deletes a single session owned by the user. The session that
// authenticated the request cannot revoke itself; that is what logout is
// for.
func (s *TokenService) RevokeOne(ctx context.Context, userID, tokenID, currentTokenID string) error {
	if tokenID == currentTokenID {
		return ErrCurrentSession
	}

	token, err := s.Store.SessionTokens().GetUserToken(ctx, userID, tokenID)
	if err != nil {
		return err
	}
	if err := s.Store.SessionTokens().DeleteToken(ctx, tokenID); err != nil {
		return err
	}

	if s.Audit != nil {
		s.Audit.Record(ctx, domain.EventSessionRevoked, userID, userID, map[string]string{
			"token_id":    token.ID,
			"device_name": token.Name,
		})
	}
	return nil
}

// RevokeAll deletes every session of the user, returning the count.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return s.Store.SessionTokens().DeleteUserTokens(ctx, userID)
}

// RevokeAllExcept deletes every session of the user but keepID.
func (s *TokenService) RevokeAllExcept(ctx context.Context, userID, keepID string) (int64, error) {
	return s.Store.SessionTokens().DeleteUserTokensExcept(ctx, userID, keepID)
}

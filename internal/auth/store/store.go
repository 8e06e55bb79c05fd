package store

import (
	"context"
	"errors"
	"time"

	"github.com/tabernacle-io/congregate/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. Sub-repositories keep the surface tidy and make it obvious
// which tables an operation can touch.
type Store interface {
	Users() Users
	SessionTokens() SessionTokens
	SecurityEvents() SecurityEvents

	ApplyMigrations() error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. Multi-step
	// operations that must be atomic (social login resolution plus token
	// issuance) go through here.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Tx starts a transaction and returns a Tx-scoped Store. The caller MUST
	// Commit or Rollback. Prefer WithTx.
	Tx(ctx context.Context) (Tx, error)

	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}

// Tx is a transaction-scoped store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user (id is provided by the app via ULID).
	// Returns ErrAlreadyExists when the email or the (provider, provider_id)
	// pair is already taken.
	CreateUser(ctx context.Context, u domain.User) error

	// GetUserByID returns a non-deleted user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByIDAny returns a user by id including soft-deleted ones.
	GetUserByIDAny(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail returns a non-deleted user by exact email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByProvider returns a non-deleted user by (provider, provider_id).
	GetUserByProvider(ctx context.Context, provider, providerID string) (domain.User, error)

	// ListUsers returns non-deleted users newest first.
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)

	// UpdateName mutates the display name and bumps updated_at.
	UpdateName(ctx context.Context, userID, name string) error

	// UpdateAvatarURL sets the avatar URL.
	UpdateAvatarURL(ctx context.Context, userID, avatarURL string) error

	// UpdatePasswordHash sets the password_hash (argon2id).
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// SetProviderLink records the social identity pair on an existing user.
	SetProviderLink(ctx context.Context, userID, provider, providerID string) error

	// MarkEmailVerified stamps email_verified_at if not already set.
	MarkEmailVerified(ctx context.Context, userID string, at time.Time) error

	// StampLastLogin records the time and address of a successful login.
	StampLastLogin(ctx context.Context, userID string, at time.Time, ip string) error

	// SetRole changes the user's role.
	SetRole(ctx context.Context, userID string, role domain.Role) error

	// SoftDeleteUser marks the account deleted; the row is retained.
	SoftDeleteUser(ctx context.Context, userID string, at time.Time) error

	// RestoreUser clears the soft-delete marker. Returns ErrNotFound for
	// unknown ids.
	RestoreUser(ctx context.Context, userID string) error
}

type SessionTokens interface {
	// CreateToken stores a new session token record (fingerprint only).
	CreateToken(ctx context.Context, t domain.SessionToken) error

	// GetToken returns a token by id.
	GetToken(ctx context.Context, id string) (domain.SessionToken, error)

	// GetUserToken returns a token by id scoped to its owner.
	GetUserToken(ctx context.Context, userID, id string) (domain.SessionToken, error)

	// ListUserTokens returns all of a user's tokens newest first.
	ListUserTokens(ctx context.Context, userID string) ([]domain.SessionToken, error)

	// TouchToken updates last_used_at. Best-effort from callers.
	TouchToken(ctx context.Context, id string, at time.Time) error

	// DeleteToken removes one token.
	DeleteToken(ctx context.Context, id string) error

	// DeleteUserTokens removes every token of a user, returning the count.
	DeleteUserTokens(ctx context.Context, userID string) (int64, error)

	// DeleteUserTokensExcept removes every token of a user but keepID,
	// returning the count.
	DeleteUserTokensExcept(ctx context.Context, userID, keepID string) (int64, error)
}

// EventFilter narrows SecurityEvents.ListEvents. Zero values mean "any".
type EventFilter struct {
	Kind     domain.EventKind
	CauserID string
	Limit    int
	Offset   int
}

type SecurityEvents interface {
	// AppendEvent writes one immutable audit record. There is no update or
	// delete counterpart.
	AppendEvent(ctx context.Context, e domain.SecurityEvent) error

	// ListEvents returns events newest first, filtered per f.
	ListEvents(ctx context.Context, f EventFilter) ([]domain.SecurityEvent, error)
}

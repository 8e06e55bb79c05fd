package domain

import "time"

// User is the canonical identity record. Social-only accounts still carry a
// password hash (a random, unusable one) and a mandatory email, so local and
// social identities always join on the email column.
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string // argon2id encoded
	Role           Role
	Provider       string // external identity provider name, "" for local-only accounts
	ProviderID     string // set iff Provider is set; the pair is globally unique
	AvatarURL      *string
	EmailVerified  *time.Time
	LastLoginAt    *time.Time
	LastLoginIP    string
	DeletedAt      *time.Time // soft delete marker; never hard-deleted here
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsSocialUser reports whether the account is linked to an external provider.
func (u User) IsSocialUser() bool { return u.Provider != "" }

// IsVerified reports whether the email address has been confirmed.
func (u User) IsVerified() bool { return u.EmailVerified != nil }

// IsDeleted reports whether the account is soft-deleted.
func (u User) IsDeleted() bool { return u.DeletedAt != nil }

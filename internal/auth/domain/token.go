package domain

import "time"

// SessionToken models one device session. The opaque bearer credential is
// "<id>|<secret>"; only the secret's SHA-256 fingerprint is stored, so the
// plaintext is retrievable exactly once, from the issue call.
type SessionToken struct {
	ID         string
	UserID     string
	Name       string // human-readable device label
	TokenHash  string // base64url SHA-256 fingerprint of the secret
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

package domain

import "time"

// EventKind is the closed vocabulary of security-relevant events. The admin
// query layer filters by kind, so the set is typed rather than matched as
// free-form sentences.
type EventKind string

const (
	EventUserRegistered         EventKind = "user_registered"
	EventUserLoggedIn           EventKind = "user_logged_in"
	EventLoginFailed            EventKind = "login_failed"
	EventUserLoggedOut          EventKind = "user_logged_out"
	EventSessionRevoked         EventKind = "session_revoked"
	EventPasswordChanged        EventKind = "password_changed"
	EventPasswordResetRequested EventKind = "password_reset_requested"
	EventPasswordReset          EventKind = "password_reset"
	EventProfileUpdated         EventKind = "profile_updated"
	EventRoleChanged            EventKind = "role_changed"
	EventUserDeleted            EventKind = "user_deleted"
	EventUserRestored           EventKind = "user_restored"
	EventNewDeviceDetected      EventKind = "new_device_detected"
	EventEmailVerified          EventKind = "email_verified"
)

// ParseEventKind validates a kind supplied by the admin query API.
func ParseEventKind(s string) (EventKind, bool) {
	switch k := EventKind(s); k {
	case EventUserRegistered, EventUserLoggedIn, EventLoginFailed,
		EventUserLoggedOut, EventSessionRevoked, EventPasswordChanged,
		EventPasswordResetRequested, EventPasswordReset, EventProfileUpdated,
		EventRoleChanged, EventUserDeleted, EventUserRestored,
		EventNewDeviceDetected, EventEmailVerified:
		return k, true
	}
	return "", false
}

// SecurityEvent is one append-only audit record. Events are immutable once
// written and never deleted by this service.
type SecurityEvent struct {
	ID         string
	Kind       EventKind
	CauserID   string // acting user, "" for unauthenticated failures
	SubjectID  string // affected user when different from the causer
	Properties map[string]string
	CreatedAt  time.Time
}

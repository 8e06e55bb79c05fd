package domain

import "fmt"

// Role is the closed set of access levels. Every user has exactly one.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// DefaultRole is assigned on registration and first social login.
const DefaultRole = RoleMember

// ParseRole validates a role name supplied by a caller.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleMember:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Action names an operation gated by the access policy.
type Action string

const (
	ActionListUsers   Action = "users.list"
	ActionViewUser    Action = "users.view"
	ActionChangeRole  Action = "users.change_role"
	ActionDeleteUser  Action = "users.delete"
	ActionRestoreUser Action = "users.restore"
	ActionViewAudit   Action = "audit.view"
)

// CanPerform is the single policy decision point. Role checks and the
// self-action guards are evaluated here rather than per endpoint, so the
// rules read in one place:
//
//   - user management and the audit trail are admin-only;
//   - an admin may not delete their own account.
//
// Self role changes carry an extra value-dependent guard (demoting yourself
// is forbidden) evaluated by the caller, since the requested role is not part
// of this signature.
//
// target is the affected user for targeted actions, nil otherwise.
func CanPerform(actor User, action Action, target *User) bool {
	if actor.Role != RoleAdmin {
		return false
	}

	if action == ActionDeleteUser && target != nil && target.ID == actor.ID {
		return false
	}
	return true
}

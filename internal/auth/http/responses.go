package http

import (
	"time"

	"github.com/tabernacle-io/congregate/internal/auth/domain"
	"github.com/tabernacle-io/congregate/internal/auth/service"
)

type userResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	Provider      string     `json:"provider,omitempty"`
	AvatarURL     *string    `json:"avatar_url,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	Deleted       bool       `json:"deleted,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Role:          string(u.Role),
		Provider:      u.Provider,
		AvatarURL:     u.AvatarURL,
		EmailVerified: u.IsVerified(),
		LastLoginAt:   u.LastLoginAt,
		Deleted:       u.IsDeleted(),
		CreatedAt:     u.CreatedAt,
	}
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func newLoginResponse(res service.LoginResult) loginResponse {
	return loginResponse{
		Token: res.Plaintext,
		User:  newUserResponse(res.User),
	}
}

type sessionResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Current    bool       `json:"is_current"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func newSessionResponse(s service.Session) sessionResponse {
	return sessionResponse{
		ID:         s.Token.ID,
		Name:       s.Token.Name,
		Current:    s.Current,
		LastUsedAt: s.Token.LastUsedAt,
		CreatedAt:  s.Token.CreatedAt,
	}
}

type eventResponse struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	CauserID   string            `json:"causer_id,omitempty"`
	SubjectID  string            `json:"subject_id,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func newEventResponse(e domain.SecurityEvent) eventResponse {
	return eventResponse{
		ID:         e.ID,
		Kind:       string(e.Kind),
		CauserID:   e.CauserID,
		SubjectID:  e.SubjectID,
		Properties: e.Properties,
		CreatedAt:  e.CreatedAt,
	}
}

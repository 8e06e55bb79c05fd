package http

import (
	"net/http"
	"strings"

	"github.com/tabernacle-io/congregate/internal/auth/service"
	"github.com/tabernacle-io/congregate/pkg/httpx"
)

// ProfileHandler serves the authenticated user's own record.
type ProfileHandler struct {
	Users *service.UserService
	Auth  *service.AuthService
}

func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, _, ok := identityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	httpx.NoCache(w)
	httpx.Success(w, http.StatusOK, "profile", newUserResponse(user))
}

type profileUpdateRequest struct {
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatar_url"`
}

func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _, ok := identityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req profileUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	errs := fieldErrors{}
	if req.Name != nil {
		validateName(errs, *req.Name)
	}
	if req.AvatarURL != nil && !strings.HasPrefix(*req.AvatarURL, "https://") {
		errs.add("avatar_url", "must be an https URL")
	}
	if !errs.ok() {
		httpx.Error(w, http.StatusUnprocessableEntity, "validation failed", errs)
		return
	}

	updated, err := h.Users.UpdateProfile(r.Context(), user, service.ProfileUpdate{
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "profile updated", newUserResponse(updated))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *ProfileHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, session, ok := identityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	errs := fieldErrors{}
	if req.CurrentPassword == "" {
		errs.add("current_password", "is required")
	}
	validatePassword(errs, "new_password", req.NewPassword)
	if !errs.ok() {
		httpx.Error(w, http.StatusUnprocessableEntity, "validation failed", errs)
		return
	}

	if err := h.Auth.ChangePassword(r.Context(), user, session, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "password changed", nil)
}

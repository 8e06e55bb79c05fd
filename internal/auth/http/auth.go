package http

import (
	"encoding/json"
	"net/http"

	"github.com/tabernacle-io/congregate/internal/auth/service"
	"github.com/tabernacle-io/congregate/internal/auth/social"
	"github.com/tabernacle-io/congregate/pkg/httpx"
)

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	AuthService *service.AuthService
	Providers   *social.Registry
}

func requestMeta(r *http.Request) service.RequestMeta {
	return service.RequestMeta{
		IP:        httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// decodeJSON fills dst from the request body, capping it at 1 MiB.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body", nil)
		return false
	}
	return true
}

type registerRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceName string `json:"device_name"`
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	errs := fieldErrors{}
	validateName(errs, req.Name)
	validateEmail(errs, req.Email)
	validatePassword(errs, "password", req.Password)
	if !errs.ok() {
		httpx.Error(w, http.StatusUnprocessableEntity, "validation failed", errs)
		return
	}

	res, err := h.AuthService.Register(r.Context(), req.Name, req.Email, req.Password, req.DeviceName, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.Success(w, http.StatusCreated, "registered", newLoginResponse(res))
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceName string `json:"device_name"`
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	errs := fieldErrors{}
	validateEmail(errs, req.Email)
	if req.Password == "" {
		errs.add("password", "is required")
	}
	if !errs.ok() {
		httpx.Error(w, http.StatusUnprocessableEntity, "validation failed", errs)
		return
	}

	res, err := h.AuthService.Login(r.Context(), req.Email, req.Password, req.DeviceName, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.Success(w, http.StatusOK, "logged in", newLoginResponse(res))
}

type socialLoginRequest struct {
	Provider    string `json:"provider"`
	AccessToken string `json:"access_token"`
	DeviceName  string `json:"device_name"`
}

func (h *AuthHandler) HandleSocialLogin(w http.ResponseWriter, r *http.Request) {
	var req socialLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	errs := fieldErrors{}
	if req.Provider == "" {
		errs.add("provider", "is required")
	}
	if req.AccessToken == "" {
		errs.add("access_token", "is required")
	}
	if !errs.ok() {
		httpx.Error(w, http.StatusUnprocessableEntity, "validation failed", errs)
		return
	}

	res, err := h.AuthService.SocialLogin(r.Context(), h.Providers, req.Provider, req.AccessToken, req.DeviceName, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.Success(w, http.StatusOK, "logged in", newLoginResponse(res))
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	user, session, ok := identityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	if err := h.AuthService.Logout(r.Context(), user, session); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "logged out", nil)
}

func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	user, _, ok := identityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	count, err := h.AuthService.LogoutAll(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "logged out everywhere", map[string]int64{"revoked_sessions": count})
}

package http

import (
	"net/http"

	"github.com/tabernacle-io/congregate/internal/auth/service"
	"github.com/tabernacle-io/congregate/pkg/httpx"
)

// VerificationHandler serves email confirmation and password reset links.
type VerificationHandler struct {
	Verifier *service.VerificationService
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (h *VerificationHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		httpx.Error(w, http.StatusUnprocessableEntity, "validation failed", fieldErrors{"token": "is required"})
		return
	}

	user, err := h.Verifier.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "email verified", newUserResponse(user))
}

func (h *VerificationHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	user, _, ok := identityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	if err := h.Verifier.ResendVerification(r.Context(), user); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "verification email sent", nil)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *VerificationHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	errs := fieldErrors{}
	validateEmail(errs, req.Email)
	if !errs.ok() {
		httpx.Error(w, http.StatusUnprocessableEntity, "validation failed", errs)
		return
	}

	if err := h.Verifier.RequestReset(r.Context(), req.Email, requestMeta(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	// The body never reveals whether the address exists.
	httpx.Success(w, http.StatusOK, "if the address exists, a reset email is on its way", nil)
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *VerificationHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	errs := fieldErrors{}
	if req.Token == "" {
		errs.add("token", "is required")
	}
	validatePassword(errs, "password", req.Password)
	if !errs.ok() {
		httpx.Error(w, http.StatusUnprocessableEntity, "validation failed", errs)
		return
	}

	if err := h.Verifier.Reset(r.Context(), req.Token, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "password reset", nil)
}

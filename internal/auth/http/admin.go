package http

import (
	"net/http"
	"strconv"

	"github.com/tabernacle-io/congregate/internal/auth/domain"
	"github.com/tabernacle-io/congregate/internal/auth/service"
	"github.com/tabernacle-io/congregate/internal/auth/store"
	"github.com/tabernacle-io/congregate/pkg/httpx"
)

// AdminHandler serves the admin-only user directory and the audit trail.
// Authorization lives in the services; the handlers only shape requests
// and responses.
type AdminHandler struct {
	Users *service.UserService
	Audit *service.AuditService
}

func parsePage(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := identityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	limit, offset := parsePage(r)
	users, err := h.Users.List(r.Context(), actor, limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	httpx.Success(w, http.StatusOK, "users", out)
}

func (h *AdminHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := identityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	user, err := h.Users.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "user", newUserResponse(user))
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (h *AdminHandler) HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := identityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req changeRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		httpx.Error(w, http.StatusUnprocessableEntity, "validation failed", fieldErrors{"role": "is not a valid role"})
		return
	}

	user, err := h.Users.ChangeRole(r.Context(), actor, r.PathValue("id"), role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "role changed", newUserResponse(user))
}

func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := identityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	if err := h.Users.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "user deleted", nil)
}

func (h *AdminHandler) HandleRestoreUser(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := identityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	user, err := h.Users.Restore(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "user restored", newUserResponse(user))
}

func (h *AdminHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := identityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	limit, offset := parsePage(r)
	filter := store.EventFilter{
		CauserID: r.URL.Query().Get("causer_id"),
		Limit:    limit,
		Offset:   offset,
	}
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind, ok := domain.ParseEventKind(raw)
		if !ok {
			httpx.Error(w, http.StatusUnprocessableEntity, "validation failed", fieldErrors{"kind": "is not a valid event kind"})
			return
		}
		filter.Kind = kind
	}

	events, err := h.Audit.List(r.Context(), actor, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, newEventResponse(e))
	}
	httpx.Success(w, http.StatusOK, "security events", out)
}

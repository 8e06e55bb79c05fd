package http

import (
	"net/http"

	"github.com/tabernacle-io/congregate/internal/auth/service"
	"github.com/tabernacle-io/congregate/pkg/httpx"
)

// SessionsHandler lets a user inspect and prune their device sessions.
type SessionsHandler struct {
	Tokens *service.TokenService
}

func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, session, ok := identityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	sessions, err := h.Tokens.Sessions(r.Context(), user.ID, session.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, newSessionResponse(s))
	}

	httpx.NoCache(w)
	httpx.Success(w, http.StatusOK, "sessions", out)
}

func (h *SessionsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	user, session, ok := identityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	tokenID := r.PathValue("id")
	if err := h.Tokens.RevokeOne(r.Context(), user.ID, tokenID, session.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "session revoked", nil)
}

package http

import (
	"context"

	"github.com/tabernacle-io/congregate/internal/auth/domain"
)

type ctxKey int

const (
	ctxKeyUser ctxKey = iota
	ctxKeySession
)

func withIdentity(ctx context.Context, user domain.User, session domain.SessionToken) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUser, user)
	return context.WithValue(ctx, ctxKeySession, session)
}

// identityFromContext returns the authenticated user and the session that
// authenticated the request. ok is false on unauthenticated requests.
func identityFromContext(ctx context.Context) (domain.User, domain.SessionToken, bool) {
	user, ok := ctx.Value(ctxKeyUser).(domain.User)
	if !ok {
		return domain.User{}, domain.SessionToken{}, false
	}
	session, ok := ctx.Value(ctxKeySession).(domain.SessionToken)
	if !ok {
		return domain.User{}, domain.SessionToken{}, false
	}
	return user, session, true
}

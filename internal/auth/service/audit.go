package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tabernacle-io/congregate/internal/auth/domain"
	"github.com/tabernacle-io/congregate/internal/auth/store"
	"github.com/tabernacle-io/congregate/pkg/idx"
	"github.com/tabernacle-io/congregate/pkg/slogx"
)

// AuditSink records security events. Implementations must tolerate being
// called from request paths: recording is best effort and never blocks
// the operation that triggered it.
type AuditSink interface {
	Record(ctx context.Context, kind domain.EventKind, causerID, subjectID string, props map[string]string)
}

// StoreAuditSink appends events to the security_events table. Failures
// are logged and swallowed so an audit outage cannot take logins down
// with it.
type StoreAuditSink struct {
	Store store.Store
}

func (s *StoreAuditSink) Record(ctx context.Context, kind domain.EventKind, causerID, subjectID string, props map[string]string) {
	event := domain.SecurityEvent{
		ID:         idx.New().String(),
		Kind:       kind,
		CauserID:   causerID,
		SubjectID:  subjectID,
		Properties: props,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Store.SecurityEvents().AppendEvent(ctx, event); err != nil {
		slogx.FromContext(ctx).Error("audit event dropped",
			slog.String("kind", string(kind)),
			slog.String("subject_id", subjectID),
			slog.Any("error", err),
		)
	}
}

// AuditService exposes the security event log for review.
type AuditService struct {
	Store store.Store
}

// List returns events matching the filter, newest first. Only admins may
// read the log.
func (s *AuditService) List(ctx context.Context, actor domain.User, filter store.EventFilter) ([]domain.SecurityEvent, error) {
	if !domain.CanPerform(actor, domain.ActionViewAudit, nil) {
		return nil, ErrForbidden
	}
	return s.Store.SecurityEvents().ListEvents(ctx, filter)
}

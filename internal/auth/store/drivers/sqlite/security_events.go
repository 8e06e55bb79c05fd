package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/tabernacle-io/congregate/internal/auth/domain"
	"github.com/tabernacle-io/congregate/internal/auth/store"
)

type securityEventsRepo struct {
	db dbtx
}

func (r *securityEventsRepo) AppendEvent(ctx context.Context, e domain.SecurityEvent) error {
	props := "{}"
	if len(e.Properties) > 0 {
		raw, err := json.Marshal(e.Properties)
		if err != nil {
			return err
		}
		props = string(raw)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO security_events (id, kind, causer_id, subject_id, properties, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), mapStringNull(e.CauserID), mapStringNull(e.SubjectID),
		props, e.CreatedAt,
	)
	return err
}

func (r *securityEventsRepo) ListEvents(ctx context.Context, f store.EventFilter) ([]domain.SecurityEvent, error) {
	var (
		conds []string
		args  []any
	)
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.CauserID != "" {
		conds = append(conds, "causer_id = ?")
		args = append(args, f.CauserID)
	}

	query := `SELECT id, kind, causer_id, subject_id, properties, created_at
		FROM security_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.SecurityEvent
	for rows.Next() {
		var (
			e         domain.SecurityEvent
			kind      string
			causerID  sql.NullString
			subjectID sql.NullString
			props     string
		)
		if err := rows.Scan(&e.ID, &kind, &causerID, &subjectID, &props, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = domain.EventKind(kind)
		e.CauserID = mapNullString(causerID)
		e.SubjectID = mapNullString(subjectID)
		if props != "" && props != "{}" {
			if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
				return nil, err
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

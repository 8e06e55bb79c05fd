package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tabernacle-io/congregate/internal/auth/domain"
)

const tokenColumns = `id, user_id, name, token_hash, last_used_at, created_at`

type sessionTokensRepo struct {
	db dbtx
}

func scanToken(row interface{ Scan(...any) error }) (domain.SessionToken, error) {
	var (
		t        domain.SessionToken
		lastUsed sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &lastUsed, &t.CreatedAt); err != nil {
		return domain.SessionToken{}, err
	}
	t.LastUsedAt = mapNullTimePtr(lastUsed)
	return t, nil
}

func (r *sessionTokensRepo) CreateToken(ctx context.Context, t domain.SessionToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_tokens (id, user_id, name, token_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Name, t.TokenHash, t.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *sessionTokensRepo) GetToken(ctx context.Context, id string) (domain.SessionToken, error) {
	t, err := scanToken(r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM session_tokens WHERE id = ?`, id))
	if err != nil {
		return domain.SessionToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *sessionTokensRepo) GetUserToken(ctx context.Context, userID, id string) (domain.SessionToken, error) {
	t, err := scanToken(r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM session_tokens WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return domain.SessionToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *sessionTokensRepo) ListUserTokens(ctx context.Context, userID string) ([]domain.SessionToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM session_tokens
		 WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []domain.SessionToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *sessionTokensRepo) TouchToken(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE session_tokens SET last_used_at = ? WHERE id = ?`, at, id)
	return err
}

func (r *sessionTokensRepo) DeleteToken(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM session_tokens WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *sessionTokensRepo) DeleteUserTokens(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM session_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionTokensRepo) DeleteUserTokensExcept(ctx context.Context, userID, keepID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM session_tokens WHERE user_id = ? AND id != ?`, userID, keepID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

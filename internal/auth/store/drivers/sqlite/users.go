package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tabernacle-io/congregate/internal/auth/domain"
	"github.com/tabernacle-io/congregate/internal/auth/store"
)

const userColumns = `id, name, email, password_hash, role, provider, provider_id,
	avatar_url, email_verified_at, last_login_at, last_login_ip, deleted_at,
	created_at, updated_at`

type usersRepo struct {
	db dbtx
}

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u             domain.User
		role          string
		provider      sql.NullString
		providerID    sql.NullString
		avatarURL     sql.NullString
		emailVerified sql.NullTime
		lastLoginAt   sql.NullTime
		lastLoginIP   sql.NullString
		deletedAt     sql.NullTime
	)

	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &provider, &providerID,
		&avatarURL, &emailVerified, &lastLoginAt, &lastLoginIP, &deletedAt,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}

	u.Role = domain.Role(role)
	u.Provider = mapNullString(provider)
	u.ProviderID = mapNullString(providerID)
	u.AvatarURL = mapNullStringPtr(avatarURL)
	u.EmailVerified = mapNullTimePtr(emailVerified)
	u.LastLoginAt = mapNullTimePtr(lastLoginAt)
	u.LastLoginIP = mapNullString(lastLoginIP)
	u.DeletedAt = mapNullTimePtr(deletedAt)
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, provider, provider_id,
			avatar_url, email_verified_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role),
		mapStringNull(u.Provider), mapStringNull(u.ProviderID),
		mapOptionalString(u.AvatarURL), mapOptionalTime(u.EmailVerified),
		u.CreatedAt, u.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ? AND deleted_at IS NULL`, id))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByIDAny(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? AND deleted_at IS NULL`, email))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByProvider(ctx context.Context, provider, providerID string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE provider = ? AND provider_id = ? AND deleted_at IS NULL`,
		provider, providerID))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE deleted_at IS NULL
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *usersRepo) UpdateName(ctx context.Context, userID, name string) error {
	return r.exec(ctx,
		`UPDATE users SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), userID)
}

func (r *usersRepo) UpdateAvatarURL(ctx context.Context, userID, avatarURL string) error {
	return r.exec(ctx,
		`UPDATE users SET avatar_url = ?, updated_at = ? WHERE id = ?`,
		avatarURL, time.Now().UTC(), userID)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return r.exec(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID)
}

func (r *usersRepo) SetProviderLink(ctx context.Context, userID, provider, providerID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET provider = ?, provider_id = ?, updated_at = ? WHERE id = ?`,
		provider, providerID, time.Now().UTC(), userID)
	if err != nil {
		return mapConstraint(err)
	}
	return requireRow(res)
}

func (r *usersRepo) MarkEmailVerified(ctx context.Context, userID string, at time.Time) error {
	return r.exec(ctx,
		`UPDATE users SET email_verified_at = ?, updated_at = ?
		 WHERE id = ? AND email_verified_at IS NULL`,
		at, time.Now().UTC(), userID)
}

func (r *usersRepo) StampLastLogin(ctx context.Context, userID string, at time.Time, ip string) error {
	return r.exec(ctx,
		`UPDATE users SET last_login_at = ?, last_login_ip = ?, updated_at = ? WHERE id = ?`,
		at, ip, time.Now().UTC(), userID)
}

func (r *usersRepo) SetRole(ctx context.Context, userID string, role domain.Role) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`,
		string(role), time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) SoftDeleteUser(ctx context.Context, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		at, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) RestoreUser(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET deleted_at = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) exec(ctx context.Context, query string, args ...any) error {
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

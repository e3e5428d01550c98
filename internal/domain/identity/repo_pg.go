package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbook/medbook/internal/platform/apperr"
	"github.com/medbook/medbook/internal/platform/db"
)

// -- Users --

type userRepoPG struct{ pool db.Queryable }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, username, first_name, surname, middle_name, phone, email, birth_date, gender, role, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.Surname, &u.MiddleName,
		&u.Phone, &u.Email, &u.BirthDate, &u.Gender, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) Upsert(ctx context.Context, id int64, username *string) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, username) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
		    updated_at = CASE WHEN users.username IS DISTINCT FROM EXCLUDED.username
		                      THEN NOW() ELSE users.updated_at END
		RETURNING `+userCols, id, username))
	if err != nil {
		return nil, fmt.Errorf("upsert user %d: %w", id, err)
	}
	return u, nil
}

func (r *userRepoPG) Verify(ctx context.Context, id int64, in VerifyInput) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `
		UPDATE users
		SET first_name = $2, surname = $3, middle_name = $4, phone = $5, email = $6,
		    birth_date = $7, gender = $8, role = 'user', updated_at = NOW()
		WHERE id = $1
		RETURNING `+userCols,
		id, in.FirstName, in.Surname, in.MiddleName, in.Phone, in.Email, in.BirthDate, in.Gender))
	if err != nil {
		return nil, fmt.Errorf("verify user %d: %w", id, err)
	}
	return u, nil
}

func (r *userRepoPG) UpdateProfile(ctx context.Context, id int64, p ProfileUpdate) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `
		UPDATE users
		SET first_name  = COALESCE($2, first_name),
		    surname     = COALESCE($3, surname),
		    middle_name = COALESCE($4, middle_name),
		    phone       = COALESCE($5, phone),
		    email       = COALESCE($6, email),
		    birth_date  = COALESCE($7, birth_date),
		    gender      = COALESCE($8, gender),
		    updated_at  = NOW()
		WHERE id = $1
		RETURNING `+userCols,
		id, p.FirstName, p.Surname, p.MiddleName, p.Phone, p.Email, p.BirthDate, p.Gender))
	if err != nil {
		return nil, fmt.Errorf("update profile %d: %w", id, err)
	}
	return u, nil
}

func (r *userRepoPG) SetRole(ctx context.Context, id int64, role string) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `
		UPDATE users SET role = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userCols, id, role))
	if err != nil {
		return nil, fmt.Errorf("set role of user %d: %w", id, err)
	}
	return u, nil
}

// -- Refresh tokens --

type refreshTokenRepoPG struct{ pool db.Queryable }

func NewRefreshTokenRepoPG(pool *pgxpool.Pool) RefreshTokenRepository {
	return &refreshTokenRepoPG{pool: pool}
}

func (r *refreshTokenRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

func (r *refreshTokenRepoPG) GetByToken(ctx context.Context, hash string) (*RefreshToken, error) {
	var t RefreshToken
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, user_id, token, expires_at, revoked_at, created_at
		FROM refresh_tokens WHERE token = $1`, hash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.RevokedAt, &t.CreatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, apperr.ErrTokenNotFound
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &t, nil
}

func (r *refreshTokenRepoPG) insert(ctx context.Context, hash string, userID int64, expiresAt time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES ($1, $2, $3)`,
		userID, hash, expiresAt)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *refreshTokenRepoPG) CreateAndRevokeAllForUser(ctx context.Context, hash string, userID int64, expiresAt time.Time) error {
	if err := r.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}
	return r.insert(ctx, hash, userID, expiresAt)
}

func (r *refreshTokenRepoPG) Rotate(ctx context.Context, oldHash, newHash string, userID int64, expiresAt time.Time) error {
	if err := r.insert(ctx, newHash, userID, expiresAt); err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = NOW()
		WHERE token = $1 AND revoked_at IS NULL`, oldHash)
	if err != nil {
		return fmt.Errorf("revoke rotated refresh token: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Lost the race: the token just inserted must not stay usable.
	if _, err := r.conn(ctx).Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = NOW() WHERE token = $1`, newHash); err != nil {
		return fmt.Errorf("revoke conflicting refresh token: %w", err)
	}
	return ErrRotationConflict
}

func (r *refreshTokenRepoPG) RevokeAllForUser(ctx context.Context, userID int64) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	if err != nil {
		return fmt.Errorf("revoke refresh tokens of user %d: %w", userID, err)
	}
	return nil
}

func (r *refreshTokenRepoPG) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

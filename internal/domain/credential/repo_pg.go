package credential

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rxapi/rxapi/internal/platform/db"
)

const usernameConstraint = "app_user_username_key"

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

const userCols = `id, username, password_hash, salt, iterations, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Salt, &u.Iterations, &u.CreatedAt); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO app_user (username, password_hash, salt, iterations, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		u.Username, u.PasswordHash, u.Salt, u.Iterations, u.CreatedAt).Scan(&u.ID)
	if db.IsUniqueViolation(err, usernameConstraint) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userCols+` FROM app_user WHERE id = $1`, id))
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userCols+` FROM app_user WHERE username = $1`, username))
}

type refreshTokenRepoPG struct{ pool *pgxpool.Pool }

func NewRefreshTokenRepoPG(pool *pgxpool.Pool) RefreshTokenRepository {
	return &refreshTokenRepoPG{pool: pool}
}

const tokenCols = `id, token, user_id, expires_at, revoked, created_at`

func scanToken(row pgx.Row) (*RefreshToken, error) {
	var t RefreshToken
	if err := row.Scan(&t.ID, &t.Token, &t.UserID, &t.ExpiresAt, &t.Revoked, &t.CreatedAt); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *refreshTokenRepoPG) Create(ctx context.Context, t *RefreshToken) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO refresh_token (token, user_id, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		t.Token, t.UserID, t.ExpiresAt, t.Revoked, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *refreshTokenRepoPG) GetByToken(ctx context.Context, token string) (*RefreshToken, error) {
	return scanToken(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+tokenCols+` FROM refresh_token WHERE token = $1`, token))
}

func (r *refreshTokenRepoPG) GetByTokenForUpdate(ctx context.Context, token string) (*RefreshToken, error) {
	if db.TxFromContext(ctx) == nil {
		return nil, fmt.Errorf("lock refresh token: no transaction in context")
	}
	return scanToken(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+tokenCols+` FROM refresh_token WHERE token = $1 FOR UPDATE`, token))
}

func (r *refreshTokenRepoPG) MarkRevoked(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE refresh_token SET revoked = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

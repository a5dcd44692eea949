package credential

import (
	"context"
)

type UserRepository interface {
	// Create assigns u.ID. A taken username yields ErrUserExists.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, t *RefreshToken) error
	GetByToken(ctx context.Context, token string) (*RefreshToken, error)
	// GetByTokenForUpdate locks the row until the surrounding transaction
	// ends. It must be called inside a transaction.
	GetByTokenForUpdate(ctx context.Context, token string) (*RefreshToken, error)
	MarkRevoked(ctx context.Context, id int64) error
}

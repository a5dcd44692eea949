package credential

import (
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrUserExists         = errors.New("user with this username already exists")

	// ErrNotFound is returned by repositories when no row matches.
	ErrNotFound = errors.New("not found")
)

// User is an account able to authenticate. PasswordHash and Salt are base64.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Salt         string
	// Iterations is the PBKDF2 work factor PasswordHash was derived with.
	Iterations   int
	CreatedAt    time.Time
}

// RefreshToken is an opaque credential exchangeable once for a new token
// pair. Rows are never deleted; redeemed or revoked tokens keep Revoked set.
type RefreshToken struct {
	ID        int64
	Token     string
	UserID    int64
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

type TokenState int

const (
	TokenActive TokenState = iota
	TokenRevoked
	TokenExpired
)

func (s TokenState) String() string {
	switch s {
	case TokenActive:
		return "active"
	case TokenRevoked:
		return "revoked"
	case TokenExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// State derives the lifecycle state at now. Revocation wins over expiry, and
// a token is already expired at its exact expiry instant.
func (t *RefreshToken) State(now time.Time) TokenState {
	if t.Revoked {
		return TokenRevoked
	}
	if !now.Before(t.ExpiresAt) {
		return TokenExpired
	}
	return TokenActive
}

// TokenPair is returned by every successful authentication. ExpiresAt is
// the access token expiry.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rxapi/rxapi/internal/platform/auth"
	"github.com/rxapi/rxapi/internal/platform/db"
)

const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	MinIterations     = 10000

	refreshTokenBytes = 32
)

// Config carries everything the credential engine needs. There are no
// package-level settings.
type Config struct {
	SigningKey []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Iterations int
}

func (c Config) withDefaults() Config {
	if c.AccessTTL == 0 {
		c.AccessTTL = DefaultAccessTTL
	}
	if c.RefreshTTL == 0 {
		c.RefreshTTL = DefaultRefreshTTL
	}
	if c.Iterations == 0 {
		c.Iterations = MinIterations
	}
	return c
}

type Service struct {
	users  UserRepository
	tokens RefreshTokenRepository
	tx     db.Transactor
	access *auth.TokenIssuer
	cfg    Config
	now    func() time.Time
}

func NewService(users UserRepository, tokens RefreshTokenRepository, tx db.Transactor, cfg Config) (*Service, error) {
	cfg = cfg.withDefaults()
	if cfg.Iterations < MinIterations {
		return nil, fmt.Errorf("pbkdf2 iterations must be at least %d, got %d", MinIterations, cfg.Iterations)
	}
	if cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive, got %s", cfg.RefreshTTL)
	}

	access, err := auth.NewTokenIssuer(auth.JWTConfig{
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		SigningKey: cfg.SigningKey,
		TTL:        cfg.AccessTTL,
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		users:  users,
		tokens: tokens,
		tx:     tx,
		access: access,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

// SetClock replaces the time source for token expiry and state checks.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.access = s.access.WithClock(now)
}

// AccessTokens returns the issuer that also verifies bearer tokens.
func (s *Service) AccessTokens() *auth.TokenIssuer {
	return s.access
}

// Register creates the account and its first token pair atomically.
func (s *Service) Register(ctx context.Context, username, password string) (*TokenPair, error) {
	salt, err := auth.GenerateSalt()
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password, salt, s.cfg.Iterations)
	if err != nil {
		return nil, err
	}

	var pair *TokenPair
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		_, err := s.users.GetByUsername(ctx, username)
		switch {
		case err == nil:
			return ErrUserExists
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("look up user: %w", err)
		}

		u := &User{
			Username:     username,
			PasswordHash: hash,
			Salt:         salt,
			Iterations:   s.cfg.Iterations,
			CreatedAt:    s.now().UTC(),
		}
		// the unique constraint settles concurrent registrations
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}

		pair, err = s.issueTokens(ctx, u)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("register: %w", err)
	}
	return pair, nil
}

// Login verifies the password and issues a new pair. Previously issued
// tokens stay valid.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: look up user: %w", err)
	}

	// each hash keeps the work factor it was created with
	iterations := u.Iterations
	if iterations <= 0 {
		iterations = MinIterations
	}
	if !auth.VerifyPassword(password, u.Salt, u.PasswordHash, iterations) {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return pair, nil
}

// Refresh redeems an active refresh token exactly once. The row is locked for
// the duration of the transaction, so a concurrent redeemer waits and then
// sees the token revoked.
func (s *Service) Refresh(ctx context.Context, token string) (*TokenPair, error) {
	var pair *TokenPair
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		rt, err := s.tokens.GetByTokenForUpdate(ctx, token)
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidToken
		}
		if err != nil {
			return fmt.Errorf("look up refresh token: %w", err)
		}
		if rt.State(s.now()) != TokenActive {
			return ErrInvalidToken
		}

		if err := s.tokens.MarkRevoked(ctx, rt.ID); err != nil {
			return fmt.Errorf("revoke redeemed token: %w", err)
		}

		u, err := s.users.GetByID(ctx, rt.UserID)
		if err != nil {
			return fmt.Errorf("look up token owner %d: %w", rt.UserID, err)
		}

		pair, err = s.issueTokens(ctx, u)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return pair, nil
}

// Revoke marks an active token revoked. Unknown, expired and already revoked
// tokens are left alone and reported as success.
func (s *Service) Revoke(ctx context.Context, token string) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		rt, err := s.tokens.GetByTokenForUpdate(ctx, token)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("look up refresh token: %w", err)
		}
		if rt.State(s.now()) != TokenActive {
			return nil
		}
		return s.tokens.MarkRevoked(ctx, rt.ID)
	})
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	return nil
}

func (s *Service) issueTokens(ctx context.Context, u *User) (*TokenPair, error) {
	access, expiresAt, err := s.access.Issue(u.ID, u.Username)
	if err != nil {
		return nil, err
	}

	refresh, err := auth.GenerateOpaqueToken(refreshTokenBytes)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rt := &RefreshToken{
		Token:     refresh,
		UserID:    u.ID,
		ExpiresAt: now.Add(s.cfg.RefreshTTL),
		CreatedAt: now,
	}
	if err := s.tokens.Create(ctx, rt); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt.UTC(),
	}, nil
}

package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried by access tokens. Username is serialized as "name".
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"name"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
	TTL        time.Duration
}

// TokenIssuer mints and verifies HS256 access tokens.
type TokenIssuer struct {
	cfg JWTConfig
	now func() time.Time
}

func NewTokenIssuer(cfg JWTConfig) (*TokenIssuer, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("jwt signing key is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("jwt ttl must be positive, got %s", cfg.TTL)
	}
	return &TokenIssuer{cfg: cfg, now: time.Now}, nil
}

// WithClock replaces the clock used for iat/exp and for expiry checks.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *i
	cp.now = now
	return &cp
}

// Issue signs a token for userID valid for the configured TTL and returns it
// together with its expiry.
func (i *TokenIssuer) Issue(userID int64, username string) (string, time.Time, error) {
	now := i.now()
	expiresAt := jwt.NewNumericDate(now.Add(i.cfg.TTL))

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: expiresAt,
		},
		Username: username,
	}
	if i.cfg.Issuer != "" {
		claims.Issuer = i.cfg.Issuer
	}
	if i.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt.Time, nil
}

// Parse verifies signature, algorithm, expiry and, when configured, issuer
// and audience.
func (i *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.cfg.Issuer))
	}
	if i.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(i.cfg.Audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return i.cfg.SigningKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("parse access token: token is not valid")
	}
	return claims, nil
}

package auth

import (
	"testing"
	"time"
)

func TestNewTokenIssuer_Validation(t *testing.T) {
	if _, err := NewTokenIssuer(JWTConfig{TTL: time.Minute}); err == nil {
		t.Error("expected error for missing signing key")
	}
	if _, err := NewTokenIssuer(JWTConfig{SigningKey: testSigningKey}); err == nil {
		t.Error("expected error for zero ttl")
	}
}

func TestTokenIssuer_IssueClaims(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t).WithClock(func() time.Time { return fixed })

	tokenStr, expiresAt, err := iss.Issue(7, "bob")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if want := fixed.Add(30 * time.Minute); !expiresAt.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, expiresAt)
	}

	claims, err := iss.Parse(tokenStr)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "7" {
		t.Errorf("expected sub 7, got %q", claims.Subject)
	}
	if claims.Username != "bob" {
		t.Errorf("expected name bob, got %q", claims.Username)
	}
	if claims.ID == "" {
		t.Error("expected jti")
	}
	if claims.Issuer != "prescription-api" {
		t.Errorf("unexpected issuer %q", claims.Issuer)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "prescription-api" {
		t.Errorf("unexpected audience %v", claims.Audience)
	}
	if !claims.IssuedAt.Time.Equal(fixed) {
		t.Errorf("expected iat %v, got %v", fixed, claims.IssuedAt)
	}
}

func TestTokenIssuer_UniqueTokenIDs(t *testing.T) {
	iss := newTestIssuer(t)
	a, _, err := iss.Issue(1, "alice")
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := iss.Issue(1, "alice")
	if err != nil {
		t.Fatal(err)
	}
	ca, _ := iss.Parse(a)
	cb, _ := iss.Parse(b)
	if ca.ID == cb.ID {
		t.Errorf("expected distinct jti, both %q", ca.ID)
	}
}

func TestTokenIssuer_ParseExpired(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t).WithClock(func() time.Time { return fixed })
	tokenStr, _, err := iss.Issue(1, "alice")
	if err != nil {
		t.Fatal(err)
	}

	later := iss.WithClock(func() time.Time { return fixed.Add(31 * time.Minute) })
	if _, err := later.Parse(tokenStr); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

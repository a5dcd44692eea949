package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rxapi/rxapi/internal/domain/credential"
)

func TestCredentialFlow(t *testing.T) {
	resetTables(t)
	svc := newCredentialService(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "pharmacist", "correct horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "pharmacist", "another one"); !errors.Is(err, credential.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	if _, err := svc.Login(ctx, "pharmacist", "wrong"); !errors.Is(err, credential.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	login, err := svc.Login(ctx, "pharmacist", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Error("expected a new refresh token")
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, credential.ErrInvalidToken) {
		t.Errorf("expected reuse rejected, got %v", err)
	}

	if err := svc.Revoke(ctx, login.RefreshToken); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.Refresh(ctx, login.RefreshToken); !errors.Is(err, credential.ErrInvalidToken) {
		t.Errorf("expected revoked token rejected, got %v", err)
	}
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	resetTables(t)
	svc := newCredentialService(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "nurse", "s3cret-pass")
	if err != nil {
		t.Fatal(err)
	}

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Refresh(ctx, pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one successful rotation, got %d (%v)", wins, errs)
	}
}

package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/praxisauth/identity"
	"github.com/praxisauth/identity/memstore"
)

func TestIncrementRateLimitWindowReset(t *testing.T) {
	store := memstore.New()
	now := time.Now().UTC()

	for i := 1; i <= 3; i++ {
		rec, err := store.RateLimits().IncrementRateLimit(context.Background(), "k", now, time.Minute)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if rec.Count != i {
			t.Errorf("count = %d, want %d", rec.Count, i)
		}
	}

	later := now.Add(2 * time.Minute)
	rec, err := store.RateLimits().IncrementRateLimit(context.Background(), "k", later, time.Minute)
	if err != nil {
		t.Fatalf("increment after window: %v", err)
	}
	if rec.Count != 1 {
		t.Errorf("count after reset = %d, want 1", rec.Count)
	}
	if !rec.WindowStart.Equal(later) {
		t.Errorf("window start = %s, want %s", rec.WindowStart, later)
	}
}

func TestRotateRefreshTokenLoser(t *testing.T) {
	store := memstore.New()
	now := time.Now().UTC()

	current := &identity.RefreshToken{
		ID:        "t1",
		UserID:    "u1",
		TokenHash: "hash-1",
		FamilyID:  "f1",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
	if err := store.RefreshTokens().CreateRefreshToken(context.Background(), current); err != nil {
		t.Fatalf("create: %v", err)
	}

	next := &identity.RefreshToken{ID: "t2", UserID: "u1", TokenHash: "hash-2", FamilyID: "f1", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	rotated, err := store.RefreshTokens().RotateRefreshToken(context.Background(), "hash-1", next)
	if err != nil || !rotated {
		t.Fatalf("first rotate: rotated=%v err=%v", rotated, err)
	}

	loser := &identity.RefreshToken{ID: "t3", UserID: "u1", TokenHash: "hash-3", FamilyID: "f1", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	rotated, err = store.RefreshTokens().RotateRefreshToken(context.Background(), "hash-1", loser)
	if err != nil {
		t.Fatalf("second rotate: %v", err)
	}
	if rotated {
		t.Fatal("dead token rotated again")
	}
	if _, err := store.RefreshTokens().GetRefreshTokenByHash(context.Background(), "hash-3"); err == nil {
		t.Error("loser's token was inserted")
	}
}

func TestPurgeCounts(t *testing.T) {
	store := memstore.New()
	now := time.Now().UTC()

	if err := store.Users().CreateUser(context.Background(), &identity.User{ID: "u1", Email: "a@b.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	for i, exp := range []time.Time{now.Add(-time.Minute), now.Add(time.Minute)} {
		err := store.CrossDomainTokens().CreateCrossDomainToken(context.Background(), &identity.CrossDomainToken{
			ID:        string(rune('a' + i)),
			UserID:    "u1",
			TokenHash: string(rune('a' + i)),
			Target:    identity.TargetHub,
			ExpiresAt: exp,
			CreatedAt: now,
		})
		if err != nil {
			t.Fatalf("create token: %v", err)
		}
	}

	purged, err := store.CrossDomainTokens().PurgeExpiredCrossDomainTokens(context.Background(), now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
}

func TestHardDeleteCascades(t *testing.T) {
	store := memstore.New()
	now := time.Now().UTC()

	if err := store.Users().CreateUser(context.Background(), &identity.User{ID: "u1", Email: "a@b.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := store.RefreshTokens().CreateRefreshToken(context.Background(), &identity.RefreshToken{
		ID: "t1", UserID: "u1", TokenHash: "h1", FamilyID: "f1",
		ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	}); err != nil {
		t.Fatalf("create token: %v", err)
	}

	if err := store.Users().HardDeleteUser(context.Background(), "u1"); err != nil {
		t.Fatalf("hard delete: %v", err)
	}
	if _, err := store.RefreshTokens().GetRefreshTokenByHash(context.Background(), "h1"); err == nil {
		t.Error("refresh token survived user deletion")
	}
	if err := store.Users().CreateUser(context.Background(), &identity.User{ID: "u2", Email: "a@b.com"}); err != nil {
		t.Errorf("email not released: %v", err)
	}
}

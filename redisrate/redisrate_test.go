package redisrate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return New(client)
}

func TestIncrementCountsWithinWindow(t *testing.T) {
	store := testStore(t)
	now := time.Now().UTC()

	for i := 1; i <= 3; i++ {
		rec, err := store.IncrementRateLimit(context.Background(), "login:a@b.com", now, time.Minute)
		if err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
		if rec.Count != i {
			t.Errorf("count = %d, want %d", rec.Count, i)
		}
		if !rec.WindowStart.Equal(now) {
			t.Errorf("window start = %s, want %s", rec.WindowStart, now)
		}
	}
}

func TestIncrementResetsStaleWindow(t *testing.T) {
	store := testStore(t)
	start := time.Now().UTC()

	for i := 0; i < 4; i++ {
		if _, err := store.IncrementRateLimit(context.Background(), "k", start, time.Minute); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	later := start.Add(2 * time.Minute)
	rec, err := store.IncrementRateLimit(context.Background(), "k", later, time.Minute)
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

func TestGetRateLimit(t *testing.T) {
	store := testStore(t)

	rec, err := store.GetRateLimit(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if rec != nil {
		t.Fatalf("missing key = %+v, want nil", rec)
	}

	now := time.Now().UTC()
	if _, err := store.IncrementRateLimit(context.Background(), "k", now, time.Minute); err != nil {
		t.Fatalf("increment: %v", err)
	}

	rec, err = store.GetRateLimit(context.Background(), "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec == nil || rec.Count != 1 || !rec.WindowStart.Equal(now) {
		t.Errorf("record = %+v", rec)
	}
	if rec.BlockedUntil != nil {
		t.Error("unexpected block")
	}
}

func TestBlockAndDelete(t *testing.T) {
	store := testStore(t)
	until := time.Now().UTC().Add(time.Minute)

	if err := store.BlockRateLimit(context.Background(), "k", until); err != nil {
		t.Fatalf("block: %v", err)
	}

	rec, err := store.GetRateLimit(context.Background(), "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec == nil || rec.BlockedUntil == nil {
		t.Fatal("block not recorded")
	}
	if !rec.BlockedUntil.Equal(until) {
		t.Errorf("blocked until = %s, want %s", rec.BlockedUntil, until)
	}

	if err := store.DeleteRateLimit(context.Background(), "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rec, err = store.GetRateLimit(context.Background(), "k")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if rec != nil {
		t.Errorf("record after delete = %+v, want nil", rec)
	}
}

// Block keys carry a TTL, so an expired block disappears on its own.
func TestBlockExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := New(client)

	until := time.Now().UTC().Add(time.Minute)
	if err := store.BlockRateLimit(context.Background(), "k", until); err != nil {
		t.Fatalf("block: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	rec, err := store.GetRateLimit(context.Background(), "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec != nil && rec.BlockedUntil != nil {
		t.Error("block survived its TTL")
	}
}

package identity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/praxisauth/identity"
)

func TestRefreshRotatesWithinFamily(t *testing.T) {
	engine := newTestEngine(t)
	pair, profile := signup(t, engine)

	r1 := pair.RefreshToken
	pair2, err := engine.Refresh(context.Background(), r1)
	if err != nil {
		t.Fatalf("refresh r1: %v", err)
	}
	if pair2.RefreshToken == r1 {
		t.Fatal("rotation returned the same refresh token")
	}

	pair3, err := engine.Refresh(context.Background(), pair2.RefreshToken)
	if err != nil {
		t.Fatalf("refresh r2: %v", err)
	}

	claims, err := engine.VerifyAccess(context.Background(), pair3.AccessToken)
	if err != nil {
		t.Fatalf("verify rotated access token: %v", err)
	}
	if claims.Subject != profile.ID {
		t.Errorf("subject = %q, want %q", claims.Subject, profile.ID)
	}
}

// Replaying a rotated token must kill the whole family: the replayed token,
// its successor and any later descendants all become unusable.
func TestRefreshReplayRevokesFamily(t *testing.T) {
	engine := newTestEngine(t)
	pair, _ := signup(t, engine)

	r1 := pair.RefreshToken
	pair2, err := engine.Refresh(context.Background(), r1)
	if err != nil {
		t.Fatalf("refresh r1: %v", err)
	}
	pair3, err := engine.Refresh(context.Background(), pair2.RefreshToken)
	if err != nil {
		t.Fatalf("refresh r2: %v", err)
	}

	if _, err := engine.Refresh(context.Background(), r1); !errors.Is(err, identity.ErrReuseDetected) {
		t.Fatalf("replay r1: got %v, want ErrReuseDetected", err)
	}

	if _, err := engine.Refresh(context.Background(), pair2.RefreshToken); !errors.Is(err, identity.ErrReuseDetected) {
		t.Errorf("r2 after cascade: got %v, want ErrReuseDetected", err)
	}
	if _, err := engine.Refresh(context.Background(), pair3.RefreshToken); !errors.Is(err, identity.ErrReuseDetected) {
		t.Errorf("r3 after cascade: got %v, want ErrReuseDetected", err)
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	engine := newTestEngine(t)
	signup(t, engine)

	_, err := engine.Refresh(context.Background(), "never-issued")
	if !errors.Is(err, identity.ErrRefreshNotFound) {
		t.Fatalf("got %v, want ErrRefreshNotFound", err)
	}
}

// Two rotations racing on the same live token: exactly one wins. With a
// reuse grace configured, losers fail as a conflict and the family
// survives.
func TestRefreshConcurrentSingleWinner(t *testing.T) {
	engine := newTestEngine(t, func(cfg *identity.Config) {
		cfg.Refresh.ReuseGrace = time.Minute
	})
	pair, _ := signup(t, engine)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*identity.TokenPair
		losses  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := engine.Refresh(context.Background(), pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, got)
			case errors.Is(err, identity.ErrRotationConflict):
				losses++
			default:
				t.Errorf("unexpected refresh error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("winners = %d, want exactly 1", len(winners))
	}
	if losses != workers-1 {
		t.Errorf("conflicts = %d, want %d", losses, workers-1)
	}

	// The family is intact: the winner's token still rotates.
	if _, err := engine.Refresh(context.Background(), winners[0].RefreshToken); err != nil {
		t.Errorf("winner's token rotation: %v", err)
	}
}

// With no grace window every dead-token presentation is treated as reuse,
// including race losers. Strict mode trades availability for safety.
func TestRefreshConcurrentStrictMode(t *testing.T) {
	engine := newTestEngine(t)
	pair, _ := signup(t, engine)

	const workers = 4
	var (
		wg                sync.WaitGroup
		mu                sync.Mutex
		successes, reuses int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Refresh(context.Background(), pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, identity.ErrReuseDetected):
				reuses++
			default:
				t.Errorf("unexpected refresh error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	if reuses != workers-1 {
		t.Errorf("reuse errors = %d, want %d", reuses, workers-1)
	}
}

func TestLogoutRevokesFamily(t *testing.T) {
	engine := newTestEngine(t)
	pair, _ := signup(t, engine)

	if err := engine.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := engine.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, identity.ErrReuseDetected) {
		t.Fatalf("refresh after logout: got %v, want ErrReuseDetected", err)
	}
}

func TestLogoutAllRevokesEveryFamily(t *testing.T) {
	engine := newTestEngine(t)
	pairA, profile := signup(t, engine)

	pairB, err := engine.Login(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	revoked, err := engine.LogoutAll(context.Background(), profile.ID)
	if err != nil {
		t.Fatalf("logout all: %v", err)
	}
	if revoked != 2 {
		t.Errorf("revoked = %d, want 2", revoked)
	}

	for name, token := range map[string]string{"family A": pairA.RefreshToken, "family B": pairB.RefreshToken} {
		if _, err := engine.Refresh(context.Background(), token); err == nil {
			t.Errorf("%s still refreshes after logout-all", name)
		}
	}
}

package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/praxisauth/identity"
	"github.com/praxisauth/identity/memstore"
)

const (
	testEmail    = "a@b.com"
	testPassword = "Secret123!"
)

// newTestEngine builds an engine on a fresh in-memory store with cheap
// Argon2 parameters and an initial signing key.
func newTestEngine(t *testing.T, mutate ...func(*identity.Config)) *identity.Engine {
	t.Helper()
	return newTestEngineOn(t, memstore.New(), mutate...)
}

// newTestEngineOn builds the engine on a caller-owned store, for tests that
// need to seed or inspect rows directly.
func newTestEngineOn(t *testing.T, store *memstore.Store, mutate ...func(*identity.Config)) *identity.Engine {
	t.Helper()

	cfg := identity.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	for _, fn := range mutate {
		fn(&cfg)
	}

	engine, err := identity.New().
		WithStore(store).
		WithConfig(cfg).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	if err := engine.EnsureSigningKey(context.Background()); err != nil {
		t.Fatalf("ensure signing key: %v", err)
	}
	return engine
}

func signup(t *testing.T, engine *identity.Engine) (*identity.TokenPair, *identity.UserProfile) {
	t.Helper()

	pair, profile, err := engine.Signup(context.Background(), identity.SignupInput{
		Email:    testEmail,
		Password: testPassword,
		Name:     "Ada",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	return pair, profile
}

func TestSignupIssuesVerifiableTokens(t *testing.T) {
	engine := newTestEngine(t)

	pair, profile, err := engine.Signup(context.Background(), identity.SignupInput{
		Email:    "Ada@Example.COM ",
		Password: testPassword,
		Name:     "Ada",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if profile.Email != "ada@example.com" {
		t.Errorf("email not normalized: %q", profile.Email)
	}
	if profile.Tier != identity.TierFree {
		t.Errorf("tier = %q, want default free", profile.Tier)
	}
	if pair.TokenType != "Bearer" {
		t.Errorf("token type = %q", pair.TokenType)
	}
	if pair.RefreshToken == "" {
		t.Error("missing refresh token")
	}

	claims, err := engine.VerifyAccess(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.Subject != profile.ID {
		t.Errorf("subject = %q, want %q", claims.Subject, profile.ID)
	}
	if claims.Email != "ada@example.com" {
		t.Errorf("claims email = %q", claims.Email)
	}
	if claims.Source != string(identity.SourceDirect) {
		t.Errorf("claims source = %q", claims.Source)
	}
}

func TestSignupRejectsBadInput(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name  string
		input identity.SignupInput
		want  error
	}{
		{"empty email", identity.SignupInput{Email: "", Password: testPassword}, identity.ErrInvalidEmail},
		{"malformed email", identity.SignupInput{Email: "not-an-email", Password: testPassword}, identity.ErrInvalidEmail},
		{"short password", identity.SignupInput{Email: testEmail, Password: "short"}, identity.ErrPasswordPolicy},
		{"unknown tier", identity.SignupInput{Email: testEmail, Password: testPassword, Tier: "platinum"}, identity.ErrInvalidEmail},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := engine.Signup(context.Background(), tc.input)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	engine := newTestEngine(t)
	signup(t, engine)

	_, _, err := engine.Signup(context.Background(), identity.SignupInput{
		Email:    "A@B.com",
		Password: testPassword,
	})
	if !errors.Is(err, identity.ErrEmailTaken) {
		t.Fatalf("got %v, want ErrEmailTaken", err)
	}
}

func TestLogin(t *testing.T) {
	engine := newTestEngine(t)
	_, profile := signup(t, engine)

	pair, err := engine.Login(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := engine.VerifyAccess(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.Subject != profile.ID {
		t.Errorf("subject = %q, want %q", claims.Subject, profile.ID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	engine := newTestEngine(t)
	signup(t, engine)

	_, err := engine.Login(context.Background(), testEmail, "WrongPassword1!")
	if !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Login(context.Background(), "nobody@example.com", testPassword)
	if !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginRateLimit(t *testing.T) {
	engine := newTestEngine(t)
	signup(t, engine)

	start := time.Now()
	for i := 0; i < 5; i++ {
		_, err := engine.Login(context.Background(), testEmail, "WrongPassword1!")
		if !errors.Is(err, identity.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: got %v, want ErrInvalidCredentials", i+1, err)
		}
	}

	// Sixth attempt in the window is denied even with the right password.
	_, err := engine.Login(context.Background(), testEmail, testPassword)
	var rateErr *identity.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("got %v, want *RateLimitError", err)
	}
	if !errors.Is(err, identity.ErrRateLimited) {
		t.Error("RateLimitError does not match ErrRateLimited")
	}

	reset := rateErr.ResetAt.Sub(start)
	if reset < 50*time.Second || reset > 70*time.Second {
		t.Errorf("resetAt %s after first attempt, want ~60s", reset)
	}
}

func TestLoginRateLimitClearsOnSuccess(t *testing.T) {
	engine := newTestEngine(t)
	signup(t, engine)

	for i := 0; i < 4; i++ {
		_, _ = engine.Login(context.Background(), testEmail, "WrongPassword1!")
	}
	if _, err := engine.Login(context.Background(), testEmail, testPassword); err != nil {
		t.Fatalf("login within budget: %v", err)
	}

	// Counter was reset, so four more failures fit in a fresh budget.
	for i := 0; i < 4; i++ {
		_, err := engine.Login(context.Background(), testEmail, "WrongPassword1!")
		if !errors.Is(err, identity.ErrInvalidCredentials) {
			t.Fatalf("post-reset attempt %d: got %v", i+1, err)
		}
	}
	if _, err := engine.Login(context.Background(), testEmail, testPassword); err != nil {
		t.Fatalf("login after reset: %v", err)
	}
}

func TestCurrentUser(t *testing.T) {
	engine := newTestEngine(t)
	pair, profile := signup(t, engine)

	got, err := engine.CurrentUser(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if got.ID != profile.ID || got.Email != profile.Email {
		t.Errorf("profile mismatch: got %+v, want %+v", got, profile)
	}

	if _, err := engine.CurrentUser(context.Background(), "garbage.token.here"); !errors.Is(err, identity.ErrTokenInvalid) {
		t.Errorf("garbage token: got %v, want ErrTokenInvalid", err)
	}
}

func TestReuseDetectionEmitsAuditEvent(t *testing.T) {
	sink := identity.NewChannelSink(64)

	cfg := identity.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := identity.New().
		WithStore(memstore.New()).
		WithConfig(cfg).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	if err := engine.EnsureSigningKey(context.Background()); err != nil {
		t.Fatalf("ensure signing key: %v", err)
	}

	pair, _, err := engine.Signup(context.Background(), identity.SignupInput{
		Email: testEmail, Password: testPassword,
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := engine.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := engine.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, identity.ErrReuseDetected) {
		t.Fatalf("replay: got %v, want ErrReuseDetected", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.EventType == identity.AuditReuseDetected {
				if event.Success {
					t.Error("reuse event marked successful")
				}
				if event.FamilyID == "" {
					t.Error("reuse event missing family id")
				}
				return
			}
		case <-deadline:
			t.Fatal("no reuse-detected audit event")
		}
	}
}

func TestMetricsSnapshot(t *testing.T) {
	engine := newTestEngine(t)
	signup(t, engine)

	_, _ = engine.Login(context.Background(), testEmail, "WrongPassword1!")

	snap := engine.MetricsSnapshot()
	if snap.Counters[identity.MetricSignupSuccess] != 1 {
		t.Errorf("signup counter = %d, want 1", snap.Counters[identity.MetricSignupSuccess])
	}
	if snap.Counters[identity.MetricLoginFailure] != 1 {
		t.Errorf("login failure counter = %d, want 1", snap.Counters[identity.MetricLoginFailure])
	}
}

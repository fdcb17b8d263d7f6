package identity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/praxisauth/identity"
)

func TestEmailChangeFlow(t *testing.T) {
	engine := newTestEngine(t)
	_, profile := signup(t, engine)

	token, err := engine.RequestEmailChange(context.Background(), profile.ID, "New@Example.com")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if token == "" {
		t.Fatal("empty confirmation token")
	}

	updated, err := engine.ConfirmEmailChange(context.Background(), token)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if updated.Email != "new@example.com" {
		t.Errorf("email = %q, want new@example.com", updated.Email)
	}
	if !updated.EmailVerified {
		t.Error("confirmed address not marked verified")
	}

	// The old address is free again and login works via the new one.
	if _, err := engine.Login(context.Background(), "new@example.com", testPassword); err != nil {
		t.Errorf("login with new email: %v", err)
	}
	if _, err := engine.Login(context.Background(), testEmail, testPassword); err == nil {
		t.Error("login with old email still works")
	}
}

func TestEmailChangeConfirmOnce(t *testing.T) {
	engine := newTestEngine(t)
	_, profile := signup(t, engine)

	token, err := engine.RequestEmailChange(context.Background(), profile.ID, "new@example.com")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if _, err := engine.ConfirmEmailChange(context.Background(), token); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if _, err := engine.ConfirmEmailChange(context.Background(), token); !errors.Is(err, identity.ErrEmailChangeNotFound) {
		t.Fatalf("second confirm: got %v, want ErrEmailChangeNotFound", err)
	}
}

// A new request supersedes the previous one; the older token dies.
func TestEmailChangeSupersession(t *testing.T) {
	engine := newTestEngine(t)
	_, profile := signup(t, engine)

	first, err := engine.RequestEmailChange(context.Background(), profile.ID, "first@example.com")
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := engine.RequestEmailChange(context.Background(), profile.ID, "second@example.com")
	if err != nil {
		t.Fatalf("second request: %v", err)
	}

	if _, err := engine.ConfirmEmailChange(context.Background(), first); !errors.Is(err, identity.ErrEmailChangeNotFound) {
		t.Fatalf("superseded token: got %v, want ErrEmailChangeNotFound", err)
	}

	updated, err := engine.ConfirmEmailChange(context.Background(), second)
	if err != nil {
		t.Fatalf("confirm second: %v", err)
	}
	if updated.Email != "second@example.com" {
		t.Errorf("email = %q, want second@example.com", updated.Email)
	}
}

func TestEmailChangeRejectsTakenAddress(t *testing.T) {
	engine := newTestEngine(t)
	_, profile := signup(t, engine)

	if _, _, err := engine.Signup(context.Background(), identity.SignupInput{
		Email:    "other@example.com",
		Password: testPassword,
	}); err != nil {
		t.Fatalf("second signup: %v", err)
	}

	if _, err := engine.RequestEmailChange(context.Background(), profile.ID, "other@example.com"); !errors.Is(err, identity.ErrEmailTaken) {
		t.Fatalf("got %v, want ErrEmailTaken", err)
	}
}

func TestEmailChangeValidation(t *testing.T) {
	engine := newTestEngine(t)
	_, profile := signup(t, engine)

	if _, err := engine.RequestEmailChange(context.Background(), profile.ID, "not an email"); !errors.Is(err, identity.ErrInvalidEmail) {
		t.Fatalf("got %v, want ErrInvalidEmail", err)
	}
	if _, err := engine.RequestEmailChange(context.Background(), "no-such-user", "ok@example.com"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
}

package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/praxisauth/identity/internal"
)

// RequestEmailChange records a pending email change and returns the raw
// confirmation token for the caller to deliver. At most one request is
// outstanding per user; a new request replaces any prior one. Delivery of
// the token is the caller's concern.
func (e *Engine) RequestEmailChange(ctx context.Context, userID, newEmail string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	email, err := normalizeEmail(newEmail)
	if err != nil {
		return "", err
	}

	user, err := e.store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.DeletedAt != nil {
		return "", ErrAccountDeleted
	}

	if _, err := e.store.Users().GetUserByEmail(ctx, email); err == nil {
		return "", ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return "", err
	}

	raw, hash, err := internal.NewToken()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	req := &EmailChangeRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		NewEmail:  email,
		TokenHash: hash,
		ExpiresAt: now.Add(e.config.EmailChange.TTL),
		CreatedAt: now,
	}
	if err := e.store.EmailChanges().ReplaceEmailChangeRequest(ctx, req); err != nil {
		return "", err
	}

	e.metricInc(MetricEmailChangeRequested)
	e.emitAudit(ctx, AuditEmailChangeRequested, userID, true, "", nil)

	return raw, nil
}

// ConfirmEmailChange consumes a confirmation token and applies the change.
// Consumption is atomic, so a token confirms at most once. The new address
// is marked verified: possession of the token proves control of it.
func (e *Engine) ConfirmEmailChange(ctx context.Context, rawToken string) (*UserProfile, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	hash := internal.HashToken(rawToken)
	req, err := e.store.EmailChanges().ConsumeEmailChangeRequest(ctx, hash, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := e.store.Users().UpdateUserEmail(ctx, req.UserID, req.NewEmail, true); err != nil {
		return nil, err
	}

	user, err := e.store.Users().GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricEmailChangeConfirmed)
	e.emitAudit(ctx, AuditEmailChangeConfirmed, req.UserID, true, "", nil)

	return user.Profile(), nil
}

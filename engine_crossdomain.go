package identity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/praxisauth/identity/internal"
)

// IssueCrossDomain mints a short-lived single-use handoff token for the
// user toward one specific target property. Issuance is rate limited per
// user to stop token-minting abuse; every issuance counts against the
// budget.
func (e *Engine) IssueCrossDomain(ctx context.Context, userID string, target Target) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if !target.Valid() {
		return "", ErrInvalidTarget
	}

	limitKey := "xdomain:" + userID
	if err := e.checkLimit(ctx, limitKey, e.config.RateLimit.CrossDomainMaxIssues, e.config.RateLimit.CrossDomainWindow); err != nil {
		e.metricInc(MetricCrossDomainRateLimited)
		return "", err
	}

	user, err := e.store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.DeletedAt != nil {
		return "", ErrAccountDeleted
	}

	if err := e.limiter.Increment(ctx, limitKey, e.config.RateLimit.CrossDomainWindow); err != nil {
		return "", err
	}

	raw, hash, err := internal.NewToken()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	token := &CrossDomainToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: hash,
		Target:    target,
		ExpiresAt: now.Add(e.config.CrossDomain.TTL),
		CreatedAt: now,
	}
	if err := e.store.CrossDomainTokens().CreateCrossDomainToken(ctx, token); err != nil {
		return "", err
	}

	e.metricInc(MetricCrossDomainIssued)
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: now,
		EventType: AuditCrossDomainIssued,
		UserID:    userID,
		Target:    string(target),
		Success:   true,
	})

	return raw, nil
}

// RedeemCrossDomain consumes a handoff token at the given target. The
// used_at stamp is a single conditional store operation, so a token never
// satisfies two redemptions even under concurrent attempts. Wrong-target
// redemption reports not-found rather than leaking that the token exists.
func (e *Engine) RedeemCrossDomain(ctx context.Context, rawToken string, target Target) (*UserProfile, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if !target.Valid() {
		return nil, ErrInvalidTarget
	}

	hash := internal.HashToken(rawToken)
	now := time.Now().UTC()

	token, consumed, err := e.store.CrossDomainTokens().ConsumeCrossDomainToken(ctx, hash, target, now)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, e.rejectedRedemption(ctx, hash, target, now)
	}

	user, err := e.store.Users().GetUserByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}
	if user.DeletedAt != nil {
		return nil, ErrAccountDeleted
	}

	e.metricInc(MetricCrossDomainRedeemed)
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: now,
		EventType: AuditCrossDomainRedeemed,
		UserID:    user.ID,
		Target:    string(target),
		Success:   true,
	})

	return user.Profile(), nil
}

// rejectedRedemption classifies a failed consume: unknown hash, wrong
// target, replayed, or expired.
func (e *Engine) rejectedRedemption(ctx context.Context, hash string, target Target, now time.Time) error {
	e.metricInc(MetricCrossDomainRejected)

	token, err := e.store.CrossDomainTokens().GetCrossDomainTokenByHash(ctx, hash)
	if err != nil {
		return err
	}

	var reason error
	switch {
	case token.Target != target:
		reason = ErrCrossDomainNotFound
	case token.UsedAt != nil:
		reason = ErrCrossDomainUsed
	case !token.ExpiresAt.After(now):
		reason = ErrCrossDomainExpired
	default:
		reason = ErrCrossDomainNotFound
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp: now,
		EventType: AuditCrossDomainRejected,
		UserID:    token.UserID,
		Target:    string(target),
		Success:   false,
		Error:     reason.Error(),
	})

	return reason
}

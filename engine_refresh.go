package identity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/praxisauth/identity/internal"
)

// Refresh rotates a refresh token: the presented token is revoked and a new
// live token is inserted into the same family in one atomic store
// operation. Presenting a dead token revokes the entire family and fails
// with [ErrReuseDetected]: a legitimate client only ever holds the latest
// token, so a dead one means either a lost race or a replayed theft, and
// the safe response is to kill the whole chain.
//
// With Refresh.ReuseGrace > 0, a token revoked within the grace window
// fails with [ErrRotationConflict] instead, without cascading. The default
// grace is zero: every dead-token presentation is treated as reuse.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	hash := internal.HashToken(refreshToken)
	now := time.Now().UTC()

	current, err := e.store.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	if current.RevokedAt != nil {
		return nil, e.deadTokenPresented(ctx, current, now)
	}
	if !current.ExpiresAt.After(now) {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshNotFound
	}

	user, err := e.store.Users().GetUserByID(ctx, current.UserID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}
	if user.DeletedAt != nil {
		_, _ = e.store.RefreshTokens().RevokeFamily(ctx, current.FamilyID)
		e.metricInc(MetricRefreshFailure)
		return nil, ErrAccountDeleted
	}

	raw, nextHash, err := internal.NewToken()
	if err != nil {
		return nil, err
	}
	next := &RefreshToken{
		ID:        uuid.NewString(),
		UserID:    current.UserID,
		TokenHash: nextHash,
		FamilyID:  current.FamilyID,
		ExpiresAt: now.Add(e.config.Refresh.TTL),
		CreatedAt: now,
	}

	rotated, err := e.store.RefreshTokens().RotateRefreshToken(ctx, hash, next)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}
	if !rotated {
		// Lost the conditional update: the token died between the read
		// above and now. Re-read and classify like any dead presentation.
		current, err = e.store.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
		if err != nil {
			e.metricInc(MetricRefreshFailure)
			return nil, err
		}
		if current.RevokedAt == nil {
			e.metricInc(MetricRefreshFailure)
			return nil, ErrRefreshNotFound
		}
		return nil, e.deadTokenPresented(ctx, current, time.Now().UTC())
	}

	access, err := e.issueAccessToken(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitFamilyAudit(ctx, AuditRefresh, user.ID, current.FamilyID, true, "")

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		TokenType:    "Bearer",
		ExpiresIn:    int64(e.config.JWT.AccessTTL.Seconds()),
	}, nil
}

// deadTokenPresented handles presentation of an already-revoked token:
// inside the reuse grace it is a race loser, outside it is theft evidence
// and the family dies.
func (e *Engine) deadTokenPresented(ctx context.Context, token *RefreshToken, now time.Time) error {
	grace := e.config.Refresh.ReuseGrace
	if grace > 0 && token.RevokedAt != nil && now.Sub(*token.RevokedAt) <= grace {
		e.metricInc(MetricRefreshConflict)
		return ErrRotationConflict
	}

	revoked, err := e.store.RefreshTokens().RevokeFamily(ctx, token.FamilyID)
	if err != nil {
		return err
	}

	e.metricInc(MetricRefreshReuseDetected)
	if revoked > 0 {
		e.metricInc(MetricFamilyRevoked)
	}
	e.emitFamilyAudit(ctx, AuditReuseDetected, token.UserID, token.FamilyID, false, ErrReuseDetected.Error())

	return ErrReuseDetected
}

// Logout revokes the family of the presented refresh token.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	hash := internal.HashToken(refreshToken)
	token, err := e.store.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		return err
	}

	if _, err := e.store.RefreshTokens().RevokeFamily(ctx, token.FamilyID); err != nil {
		return err
	}

	e.emitFamilyAudit(ctx, AuditLogout, token.UserID, token.FamilyID, true, "")
	return nil
}

// LogoutAll revokes every refresh token the user holds, across all
// families. Used for logout-everywhere.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int64, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	revoked, err := e.store.RefreshTokens().RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	e.emitAudit(ctx, AuditLogoutAll, userID, true, "", nil)
	return revoked, nil
}

package identity

import (
	"context"
	"strconv"
	"time"
)

// SoftDeleteUser marks the user deleted and revokes every refresh token
// they hold. The account fails authentication immediately but remains
// restorable until a sweep purges it after the configured grace window.
func (e *Engine) SoftDeleteUser(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	now := time.Now().UTC()
	if err := e.store.Users().SetUserDeletedAt(ctx, userID, &now); err != nil {
		return err
	}
	if _, err := e.store.RefreshTokens().RevokeAllForUser(ctx, userID); err != nil {
		return err
	}

	e.metricInc(MetricUserSoftDeleted)
	e.emitAudit(ctx, AuditUserSoftDeleted, userID, true, "", nil)
	return nil
}

// RestoreUser clears the soft-delete marker. The same credential hash
// works again. Fails with [ErrUserNotFound] once a sweep has purged the
// account.
func (e *Engine) RestoreUser(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.store.Users().SetUserDeletedAt(ctx, userID, nil); err != nil {
		return err
	}

	e.metricInc(MetricUserRestored)
	e.emitAudit(ctx, AuditUserRestored, userID, true, "", nil)
	return nil
}

// HardDeleteUser removes the user record irreversibly, along with its
// refresh tokens.
func (e *Engine) HardDeleteUser(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if _, err := e.store.RefreshTokens().RevokeAllForUser(ctx, userID); err != nil {
		return err
	}
	if err := e.store.Users().HardDeleteUser(ctx, userID); err != nil {
		return err
	}

	e.emitAudit(ctx, AuditUserHardDeleted, userID, true, "", nil)
	return nil
}

// Sweep runs one cleanup pass: hard-deletes users whose soft-delete is
// older than the grace window and purges expired refresh tokens, handoff
// tokens and email change requests. Delete-if-expired is naturally
// idempotent, so sweeps are safe to run repeatedly or concurrently.
func (e *Engine) Sweep(ctx context.Context) (*SweepReport, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	now := time.Now().UTC()
	report := &SweepReport{}

	var err error
	if report.UsersPurged, err = e.store.Users().PurgeUsersDeletedBefore(ctx, now.Add(-e.config.Lifecycle.PurgeAfter)); err != nil {
		return nil, err
	}
	if report.RefreshTokensPurged, err = e.store.RefreshTokens().PurgeExpiredRefreshTokens(ctx, now); err != nil {
		return nil, err
	}
	if report.CrossDomainPurged, err = e.store.CrossDomainTokens().PurgeExpiredCrossDomainTokens(ctx, now); err != nil {
		return nil, err
	}
	if report.EmailChangesPurged, err = e.store.EmailChanges().PurgeExpiredEmailChanges(ctx, now); err != nil {
		return nil, err
	}

	e.metricInc(MetricSweepRuns)
	e.emitAudit(ctx, AuditSweep, "", true, "", map[string]string{
		"users_purged":          strconv.FormatInt(report.UsersPurged, 10),
		"refresh_tokens_purged": strconv.FormatInt(report.RefreshTokensPurged, 10),
		"cross_domain_purged":   strconv.FormatInt(report.CrossDomainPurged, 10),
		"email_changes_purged":  strconv.FormatInt(report.EmailChangesPurged, 10),
	})

	return report, nil
}

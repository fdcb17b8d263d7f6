package identity

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/praxisauth/identity/internal/audit"
	"github.com/praxisauth/identity/jwt"
	"github.com/praxisauth/identity/password"
)

// Engine is the identity core. Build it with [New]; treat it as immutable
// afterwards. All methods are safe for concurrent use: the engine keeps no
// mutable state beyond the short-lived signing-key cache.
type Engine struct {
	config       Config
	store        Store
	rateLimits   RateLimitStore
	limiter      *rateLimiter
	passwordHash *password.Hasher
	jwtManager   *jwt.Manager
	keys         *keyCache
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// VerifyAccess validates an access token against the active verification
// key set and returns its claims. Distinguishes [ErrTokenExpired] (valid
// signature, past expiry) from [ErrTokenInvalid] (everything else) because
// callers recover differently: expired tokens refresh silently, invalid
// ones force re-auth.
func (e *Engine) VerifyAccess(ctx context.Context, token string) (*jwt.AccessClaims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	resolver, err := e.keyResolver(ctx)
	if err != nil {
		return nil, err
	}

	claims, err := e.jwtManager.Verify(token, resolver)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrTokenInvalid
		}
	}
	return claims, nil
}

// CurrentUser verifies an access token and loads the public projection of
// its subject. Soft-deleted subjects fail with [ErrAccountDeleted].
func (e *Engine) CurrentUser(ctx context.Context, accessToken string) (*UserProfile, error) {
	claims, err := e.VerifyAccess(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	user, err := e.store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user.DeletedAt != nil {
		return nil, ErrAccountDeleted
	}

	return user.Profile(), nil
}

// UserProfileByID loads the public projection for a user already
// authenticated by other means. Soft-deleted subjects fail with
// [ErrAccountDeleted].
func (e *Engine) UserProfileByID(ctx context.Context, userID string) (*UserProfile, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.DeletedAt != nil {
		return nil, ErrAccountDeleted
	}

	return user.Profile(), nil
}

// Config returns a copy of the engine's effective configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) emitAudit(ctx context.Context, eventType, userID string, success bool, errMsg string, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Emit(ctx, internalaudit.Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Success:   success,
		Error:     errMsg,
		Metadata:  metadata,
	})
}

func (e *Engine) emitFamilyAudit(ctx context.Context, eventType, userID, familyID string, success bool, errMsg string) {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Emit(ctx, internalaudit.Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		FamilyID:  familyID,
		Success:   success,
		Error:     errMsg,
	})
}

package identity

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidEmail rejects malformed email addresses before any store access.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrPasswordPolicy rejects passwords below the minimum length.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrEmailTaken is returned when signup or email change collides with an existing account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned for unknown identifiers and bad passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDeleted is returned when a soft-deleted account attempts to authenticate.
	ErrAccountDeleted = errors.New("account deleted")
	// ErrUserNotFound is returned for lookups of unknown or purged users.
	ErrUserNotFound = errors.New("user not found")

	// ErrTokenExpired marks an access token with a valid signature past its expiry.
	// Callers may silently recover via refresh.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid marks a bad signature, issuer or audience. Never retried.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrRefreshNotFound is returned when a presented refresh token never
	// existed or was purged. Surfaced as re-auth required.
	ErrRefreshNotFound = errors.New("refresh token not found")
	// ErrReuseDetected is returned when a dead refresh token is presented.
	// The whole family is revoked before this error is returned.
	ErrReuseDetected = errors.New("refresh token reuse detected")
	// ErrRotationConflict is the concurrent-loser branch of rotation when a
	// reuse grace window is configured: the presented token lost a race
	// moments ago rather than being replayed.
	ErrRotationConflict = errors.New("refresh rotation conflict")

	// ErrRateLimited is the base error for rate-limit denials. The concrete
	// error is a *RateLimitError carrying the reset time.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCrossDomainNotFound is returned for unknown or wrong-target handoff tokens.
	ErrCrossDomainNotFound = errors.New("cross-domain token not found")
	// ErrCrossDomainUsed is returned when a handoff token is redeemed twice.
	ErrCrossDomainUsed = errors.New("cross-domain token already used")
	// ErrCrossDomainExpired is returned for handoff tokens past their TTL.
	ErrCrossDomainExpired = errors.New("cross-domain token expired")
	// ErrInvalidTarget rejects cross-domain targets outside the closed set.
	ErrInvalidTarget = errors.New("invalid cross-domain target")

	// ErrEmailChangeNotFound is returned for unknown or expired email change tokens.
	ErrEmailChangeNotFound = errors.New("email change request not found")

	// ErrKeyNotFound is returned when no active signing key exists.
	ErrKeyNotFound = errors.New("signing key not found")

	// ErrStoreUnavailable wraps backend connectivity failures. Driver detail
	// is kept out of the message surfaced to callers.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrEngineNotReady is returned by a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitError is the concrete error behind [ErrRateLimited]. ResetAt tells
// callers exactly when to back off until.
type RateLimitError struct {
	Key     string
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s until %s", e.Key, e.ResetAt.UTC().Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrRateLimited) succeed for RateLimitError values.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

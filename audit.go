package identity

import (
	"io"

	internalaudit "github.com/praxisauth/identity/internal/audit"
)

// Audit event types emitted by the engine. ReuseDetected and family
// revocations are the security-critical ones; treat them as incidents.
const (
	AuditSignup               = "signup"
	AuditLogin                = "login"
	AuditLoginRateLimited     = "login_rate_limited"
	AuditRefresh              = "refresh"
	AuditReuseDetected        = "refresh_reuse_detected"
	AuditFamilyRevoked        = "refresh_family_revoked"
	AuditLogout               = "logout"
	AuditLogoutAll            = "logout_all"
	AuditCrossDomainIssued    = "cross_domain_issued"
	AuditCrossDomainRedeemed  = "cross_domain_redeemed"
	AuditCrossDomainRejected  = "cross_domain_rejected"
	AuditKeyRotated           = "signing_key_rotated"
	AuditKeyDecommissioned    = "signing_key_decommissioned"
	AuditEmailChangeRequested = "email_change_requested"
	AuditEmailChangeConfirmed = "email_change_confirmed"
	AuditUserSoftDeleted      = "user_soft_deleted"
	AuditUserRestored         = "user_restored"
	AuditUserHardDeleted      = "user_hard_deleted"
	AuditSweep                = "lifecycle_sweep"
)

// AuditEvent is a structured security event emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events, one per
// line, to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

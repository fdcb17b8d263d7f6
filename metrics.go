package identity

import internalmetrics "github.com/praxisauth/identity/internal/metrics"

// MetricID identifies a specific counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricSignupSuccess          = internalmetrics.MetricSignupSuccess
	MetricSignupRejected         = internalmetrics.MetricSignupRejected
	MetricLoginSuccess           = internalmetrics.MetricLoginSuccess
	MetricLoginFailure           = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited       = internalmetrics.MetricLoginRateLimited
	MetricRefreshSuccess         = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure         = internalmetrics.MetricRefreshFailure
	MetricRefreshReuseDetected   = internalmetrics.MetricRefreshReuseDetected
	MetricRefreshConflict        = internalmetrics.MetricRefreshConflict
	MetricFamilyRevoked          = internalmetrics.MetricFamilyRevoked
	MetricCrossDomainIssued      = internalmetrics.MetricCrossDomainIssued
	MetricCrossDomainRedeemed    = internalmetrics.MetricCrossDomainRedeemed
	MetricCrossDomainRejected    = internalmetrics.MetricCrossDomainRejected
	MetricCrossDomainRateLimited = internalmetrics.MetricCrossDomainRateLimited
	MetricKeyRotated             = internalmetrics.MetricKeyRotated
	MetricEmailChangeRequested   = internalmetrics.MetricEmailChangeRequested
	MetricEmailChangeConfirmed   = internalmetrics.MetricEmailChangeConfirmed
	MetricUserSoftDeleted        = internalmetrics.MetricUserSoftDeleted
	MetricUserRestored           = internalmetrics.MetricUserRestored
	MetricSweepRuns              = internalmetrics.MetricSweepRuns
)

// Metrics holds atomic counters.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance. When Enabled is false, all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{Enabled: cfg.Enabled})
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the trust core.
type Metrics struct {
	Logins          prometheus.Counter
	AuthFailures    prometheus.Counter
	TokenRefreshes  prometheus.Counter
	TokensRevoked   prometheus.Counter
	FederatedLogins prometheus.Counter

	AuditAppends      prometheus.Counter
	AuditAppendErrors prometheus.Counter
	IntegrityFailures prometheus.Counter
	EntriesArchived   prometheus.Counter
	EntriesPurged     prometheus.Counter
	RetentionCycles   *prometheus.CounterVec
	RetentionDuration prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Logins: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_logins_total",
			Help: "Total number of successful logins",
		}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_auth_failures_total",
			Help: "Total number of authentication failures",
		}),
		TokenRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_token_refreshes_total",
			Help: "Total number of successful refresh token rotations",
		}),
		TokensRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_tokens_revoked_total",
			Help: "Total number of refresh tokens revoked",
		}),
		FederatedLogins: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_federated_logins_total",
			Help: "Total number of successful federated sign-ons",
		}),
		AuditAppends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_audit_appends_total",
			Help: "Total number of audit entries appended",
		}),
		AuditAppendErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_audit_append_errors_total",
			Help: "Total number of failed audit appends",
		}),
		IntegrityFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_integrity_failures_total",
			Help: "Total number of entries that failed hash verification",
		}),
		EntriesArchived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_audit_entries_archived_total",
			Help: "Total number of audit entries moved to the archived tier",
		}),
		EntriesPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_audit_entries_purged_total",
			Help: "Total number of archived audit entries purged",
		}),
		RetentionCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustcore_retention_cycles_total",
			Help: "Total retention cycles, labeled by outcome",
		}, []string{"outcome"}),
		RetentionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustcore_retention_cycle_duration_seconds",
			Help:    "Duration of retention cycles in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// IncrementLogins increments the successful login counter.
func (m *Metrics) IncrementLogins() {
	if m != nil {
		m.Logins.Inc()
	}
}

// IncrementAuthFailures increments the authentication failure counter.
func (m *Metrics) IncrementAuthFailures() {
	if m != nil {
		m.AuthFailures.Inc()
	}
}

// IncrementTokenRefreshes increments the refresh rotation counter.
func (m *Metrics) IncrementTokenRefreshes() {
	if m != nil {
		m.TokenRefreshes.Inc()
	}
}

// IncrementTokensRevoked increments the revocation counter.
func (m *Metrics) IncrementTokensRevoked() {
	if m != nil {
		m.TokensRevoked.Inc()
	}
}

// IncrementFederatedLogins increments the federated sign-on counter.
func (m *Metrics) IncrementFederatedLogins() {
	if m != nil {
		m.FederatedLogins.Inc()
	}
}

// IncrementAuditAppends increments the audit append counter.
func (m *Metrics) IncrementAuditAppends() {
	if m != nil {
		m.AuditAppends.Inc()
	}
}

// IncrementAuditAppendErrors increments the audit append failure counter.
func (m *Metrics) IncrementAuditAppendErrors() {
	if m != nil {
		m.AuditAppendErrors.Inc()
	}
}

// IncrementIntegrityFailures increments the verification failure counter.
func (m *Metrics) IncrementIntegrityFailures() {
	if m != nil {
		m.IntegrityFailures.Inc()
	}
}

// ObserveRetentionCycle records one retention cycle outcome and duration.
func (m *Metrics) ObserveRetentionCycle(outcome string, seconds float64, archived, purged int) {
	if m == nil {
		return
	}
	m.RetentionCycles.WithLabelValues(outcome).Inc()
	m.RetentionDuration.Observe(seconds)
	m.EntriesArchived.Add(float64(archived))
	m.EntriesPurged.Add(float64(purged))
}

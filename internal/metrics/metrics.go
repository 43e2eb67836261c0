// Package metrics exposes Prometheus instrumentation for the registration core.
// All methods are safe on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/campuspass/backend/pkg/apperr"
)

// OutcomeOK labels a successful operation; failures use the apperr kind.
const OutcomeOK = "ok"

// Metrics provides observability for registrations, decisions and credentials.
type Metrics struct {
	// Register outcomes
	Registrations *prometheus.CounterVec

	// Decide/Reverse outcomes by decision
	Decisions *prometheus.CounterVec

	// Ticket and certificate issuance by kind and outcome
	CredentialsIssued *prometheus.CounterVec
	RenderLatency     *prometheus.HistogramVec

	// Verification results by reason
	Verifications *prometheus.CounterVec

	// Notification enqueue/delivery outcomes
	Notifications *prometheus.CounterVec
}

// New registers all metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campuspass_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"outcome"}),

		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campuspass_decisions_total",
			Help: "Approval decisions by decision and outcome",
		}, []string{"decision", "outcome"}),

		CredentialsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campuspass_credentials_issued_total",
			Help: "Ticket and certificate issuance by kind and outcome",
		}, []string{"kind", "outcome"}),

		RenderLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campuspass_credential_render_duration_seconds",
			Help:    "Duration of PDF rendering by kind",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"kind"}),

		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campuspass_verifications_total",
			Help: "Credential verifications by result",
		}, []string{"result"}),

		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campuspass_notifications_total",
			Help: "Notification jobs by stage and outcome",
		}, []string{"stage", "outcome"}),
	}
}

// Outcome returns the label for err.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return string(apperr.KindOf(err))
}

// ObserveRegistration records a Register outcome.
func (m *Metrics) ObserveRegistration(err error) {
	if m != nil {
		m.Registrations.WithLabelValues(Outcome(err)).Inc()
	}
}

// ObserveDecision records a Decide or Reverse outcome.
func (m *Metrics) ObserveDecision(decision string, err error) {
	if m != nil {
		m.Decisions.WithLabelValues(decision, Outcome(err)).Inc()
	}
}

// ObserveCredential records an issuance attempt.
func (m *Metrics) ObserveCredential(kind string, err error) {
	if m != nil {
		m.CredentialsIssued.WithLabelValues(kind, Outcome(err)).Inc()
	}
}

// ObserveRender records the duration of a PDF render.
func (m *Metrics) ObserveRender(kind string, d time.Duration) {
	if m != nil {
		m.RenderLatency.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// ObserveVerification records a verification result ("verified" or the failure reason).
func (m *Metrics) ObserveVerification(result string) {
	if m != nil {
		m.Verifications.WithLabelValues(result).Inc()
	}
}

// ObserveNotification records a notification stage ("enqueue", "deliver") outcome.
func (m *Metrics) ObserveNotification(stage, outcome string) {
	if m != nil {
		m.Notifications.WithLabelValues(stage, outcome).Inc()
	}
}

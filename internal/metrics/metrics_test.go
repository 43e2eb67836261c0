package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/campuspass/backend/pkg/apperr"
)

func TestObserveRegistration(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRegistration(nil)
	m.ObserveRegistration(apperr.New(apperr.KindRegistrationClosed, "closed"))
	m.ObserveRegistration(apperr.New(apperr.KindRegistrationClosed, "closed"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registrations.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Registrations.WithLabelValues("registration_closed")))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "internal", Outcome(errors.New("boom")))
	assert.Equal(t, "capacity_exceeded", Outcome(apperr.New(apperr.KindCapacityExceeded, "full")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRegistration(nil)
		m.ObserveDecision("approved", nil)
		m.ObserveCredential("ticket", nil)
		m.ObserveRender("ticket", 0)
		m.ObserveVerification("verified")
		m.ObserveNotification("enqueue", "ok")
	})
}

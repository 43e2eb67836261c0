// Package notifications hands registration lifecycle notices to the email collaborator.
// Producers enqueue through a Notifier without waiting on delivery; the worker process
// runs a Processor that renders and records each email.
package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuspass/backend/internal/metrics"
	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/pkg/queue"
)

// DefaultEnqueueTimeout bounds how long a producer may spend handing off a notice.
const DefaultEnqueueTimeout = 2 * time.Second

// Notice names a lifecycle change. Recipient details are resolved at delivery time.
type Notice struct {
	Type           string    `json:"email_type"`
	RegistrationID uuid.UUID `json:"registration_id"`
	EventID        uuid.UUID `json:"event_id"`
	UserID         uuid.UUID `json:"user_id"`
}

// NoticeFor builds the notice announcing reg's current status.
func NoticeFor(reg *models.Registration) Notice {
	typ := models.EmailTypeRegistrationReceived
	switch reg.Status {
	case models.RegistrationApproved:
		typ = models.EmailTypeRegistrationApproved
	case models.RegistrationRejected:
		typ = models.EmailTypeRegistrationRejected
	}
	return Notice{Type: typ, RegistrationID: reg.ID, EventID: reg.EventID, UserID: reg.UserID}
}

// Notifier accepts notices for asynchronous delivery.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Enqueuer is satisfied by *queue.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ queue.JobType, payload any) (*queue.Job, error)
}

// QueueNotifier pushes notices onto the job queue.
type QueueNotifier struct {
	q       Enqueuer
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewQueueNotifier creates a QueueNotifier. A non-positive timeout uses DefaultEnqueueTimeout.
func NewQueueNotifier(q Enqueuer, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultEnqueueTimeout
	}
	return &QueueNotifier{q: q, timeout: timeout, metrics: m, logger: logger}
}

// Notify enqueues n. The caller's cancellation is ignored so a finished request does not
// abort the hand-off; the enqueue timeout still applies.
func (n *QueueNotifier) Notify(ctx context.Context, notice Notice) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	job, err := n.q.Enqueue(ctx, queue.JobTypeEmail, notice)
	if err != nil {
		n.metrics.ObserveNotification("enqueue", "error")
		return err
	}
	n.metrics.ObserveNotification("enqueue", metrics.OutcomeOK)
	n.logger.Debug("notification enqueued",
		zap.String("job_id", job.ID),
		zap.String("email_type", notice.Type),
		zap.String("registration_id", notice.RegistrationID.String()))
	return nil
}

// LogNotifier only logs notices. It stands in when no queue is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, notice Notice) error {
	n.logger.Info("notification (queue disabled)",
		zap.String("email_type", notice.Type),
		zap.String("registration_id", notice.RegistrationID.String()))
	return nil
}

// Dispatch sends notices through a Notifier without blocking the caller.
type Dispatch struct {
	notifier Notifier
	run      func(func())
	logger   *zap.Logger
}

// NewDispatch creates a Dispatch that runs each hand-off on its own goroutine.
func NewDispatch(n Notifier, logger *zap.Logger) *Dispatch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatch{notifier: n, run: func(f func()) { go f() }, logger: logger}
}

// WithRunner replaces the goroutine launcher. Tests pass a synchronous runner.
func (d *Dispatch) WithRunner(run func(func())) *Dispatch {
	d.run = run
	return d
}

// Send fires n and returns immediately. Failures are logged and dropped.
func (d *Dispatch) Send(ctx context.Context, n Notice) {
	if d == nil || d.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	d.run(func() {
		if err := d.notifier.Notify(ctx, n); err != nil {
			d.logger.Warn("notification dropped",
				zap.Error(err),
				zap.String("email_type", n.Type),
				zap.String("registration_id", n.RegistrationID.String()))
		}
	})
}

package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campuspass/backend/internal/metrics"
	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/store"
	"github.com/campuspass/backend/pkg/queue"
)

// ErrUnknownJob is returned for jobs this processor does not handle.
var ErrUnknownJob = errors.New("unknown job type")

// JobSource is satisfied by *queue.Queue.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (deadLettered bool, err error)
}

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers rendered emails. Delivery itself belongs to the external mail service.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// LogSender logs messages instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, m Message) error {
	s.logger.Info("email", zap.String("to", m.To), zap.String("subject", m.Subject))
	return nil
}

// Stores groups the read and log stores the processor needs.
type Stores struct {
	Registrations store.RegistrationStore
	Events        store.EventStore
	Users         store.UserStore
	EmailLogs     store.EmailLogStore
}

// Processor renders queued notices and hands them to a Sender.
type Processor struct {
	source  JobSource
	stores  Stores
	sender  Sender
	backoff time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewProcessor creates a notification processor.
func NewProcessor(source JobSource, stores Stores, sender Sender, m *metrics.Metrics, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{source: source, stores: stores, sender: sender, backoff: queue.RetryBackoff, metrics: m, logger: logger}
}

// WithBackoff sets the pause after a failed job or dequeue error.
func (p *Processor) WithBackoff(d time.Duration) *Processor {
	p.backoff = d
	return p
}

// Process executes one email job and records the attempt in email_logs.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("%w: %s", ErrUnknownJob, job.Type)
	}
	var notice Notice
	if err := json.Unmarshal(job.Payload, &notice); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	reg, err := p.stores.Registrations.GetByID(ctx, notice.RegistrationID)
	if err != nil {
		return fmt.Errorf("load registration %s: %w", notice.RegistrationID, err)
	}
	event, err := p.stores.Events.GetByID(ctx, reg.EventID)
	if err != nil {
		return fmt.Errorf("load event %s: %w", reg.EventID, err)
	}
	user, err := p.stores.Users.GetByID(ctx, reg.UserID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", reg.UserID, err)
	}

	msg, err := Compose(notice.Type, event, user, reg)
	if err != nil {
		return err
	}

	entry := &models.EmailLog{
		EventID:        &event.ID,
		RegistrationID: &reg.ID,
		EmailType:      notice.Type,
		RecipientEmail: msg.To,
		Subject:        msg.Subject,
	}
	sendErr := p.sender.Send(ctx, msg)
	if sendErr != nil {
		entry.Status = models.EmailLogStatusFailed
		entry.ErrorMessage = sendErr.Error()
	} else {
		now := time.Now().UTC()
		entry.Status = models.EmailLogStatusSent
		entry.SentAt = &now
	}
	if err := p.stores.EmailLogs.Create(ctx, entry); err != nil {
		p.logger.Error("email log write failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
	}
	if sendErr != nil {
		return fmt.Errorf("send: %w", sendErr)
	}
	p.logger.Info("notification delivered",
		zap.String("job_id", job.ID),
		zap.String("email_type", notice.Type),
		zap.String("registration_id", reg.ID.String()))
	return nil
}

// Run dequeues and processes jobs until ctx is done. Failed jobs are retried through
// the source, which dead-letters them after the retry limit.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return nil
		default:
		}

		job, err := p.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.metrics.ObserveNotification("deliver", "error")
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if _, reErr := p.source.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
			continue
		}
		p.metrics.ObserveNotification("deliver", metrics.OutcomeOK)
	}
}

func (p *Processor) sleep(ctx context.Context) {
	if p.backoff <= 0 {
		return
	}
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Compose renders the email for a notice type.
func Compose(emailType string, e *models.Event, u *models.User, r *models.Registration) (Message, error) {
	name := u.FullName
	if strings.TrimSpace(name) == "" {
		name = u.Email
	}
	var subject, lead string
	switch emailType {
	case models.EmailTypeRegistrationReceived:
		subject = "Registration received: " + e.Title
		lead = "We received your registration. An organiser will review it shortly."
	case models.EmailTypeRegistrationApproved:
		subject = "You're in: " + e.Title
		lead = "Your registration was approved. Download your ticket and bring it to the entrance."
	case models.EmailTypeRegistrationRejected:
		subject = "Registration update: " + e.Title
		lead = "Unfortunately your registration could not be approved."
	default:
		return Message{}, fmt.Errorf("%w: email type %q", ErrUnknownJob, emailType)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n%s\n\n", name, lead)
	fmt.Fprintf(&b, "Event: %s\n", e.Title)
	fmt.Fprintf(&b, "Date: %s\n", e.StartDate.UTC().Format("Mon, 02 Jan 2006 15:04 MST"))
	if e.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", e.Location)
	}
	fmt.Fprintf(&b, "Registration: %s\n", r.ShortID())
	return Message{To: u.Email, Subject: subject, Body: b.String()}, nil
}

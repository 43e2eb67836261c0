package registrations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuspass/backend/internal/ledger"
	"github.com/campuspass/backend/internal/metrics"
	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/notifications"
	"github.com/campuspass/backend/internal/store"
	"github.com/campuspass/backend/pkg/apperr"
)

// Service runs the registration state machine. It never changes the slot counter;
// approval does that through the ledger.
type Service struct {
	events   store.EventStore
	regs     store.RegistrationStore
	audit    store.AuditStore
	tx       store.Transactor
	dispatch *notifications.Dispatch
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for the open check.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Deps are the stores a Service works against.
type Deps struct {
	Events        store.EventStore
	Registrations store.RegistrationStore
	Audit         store.AuditStore
	Tx            store.Transactor
}

// NewService creates a registration service. A nil dispatch disables notifications.
func NewService(deps Deps, dispatch *notifications.Dispatch, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		events:   deps.Events,
		regs:     deps.Registrations,
		audit:    deps.Audit,
		tx:       deps.Tx,
		dispatch: dispatch,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a pending registration of userID for eventID.
func (s *Service) Register(ctx context.Context, eventID, userID uuid.UUID) (reg *models.Registration, err error) {
	defer func() { s.metrics.ObserveRegistration(err) }()

	event, err := s.events.GetByID(ctx, eventID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("event not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load event")
	}

	existing, err := s.regs.GetByEventAndUser(ctx, eventID, userID)
	switch {
	case err == nil && existing != nil:
		return nil, duplicate()
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, apperr.Internal(err, "failed to check existing registration")
	}

	if !ledger.IsRegistrationOpen(event, s.now()) {
		return nil, apperr.New(apperr.KindRegistrationClosed, "registration is closed for this event")
	}

	reg = &models.Registration{
		EventID:       eventID,
		UserID:        userID,
		Status:        models.RegistrationPending,
		PaymentStatus: models.PaymentUnpaid,
	}
	if err := s.regs.Create(ctx, reg); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return nil, duplicate()
		case errors.Is(err, store.ErrNotFound):
			return nil, apperr.NotFound("event or user not found")
		}
		return nil, apperr.Internal(err, "failed to create registration")
	}

	s.logger.Info("registration created",
		zap.String("registration_id", reg.ID.String()),
		zap.String("event_id", eventID.String()),
		zap.String("user_id", userID.String()))
	s.dispatch.Send(ctx, notifications.NoticeFor(reg))
	return reg, nil
}

// Get returns a registration by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	reg, err := s.regs.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("registration not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load registration")
	}
	return reg, nil
}

// GetFor returns a registration visible to p: admins see all, students only their own.
func (s *Service) GetFor(ctx context.Context, p models.Principal, id uuid.UUID) (*models.Registration, error) {
	reg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && reg.UserID != p.UserID {
		return nil, apperr.New(apperr.KindForbidden, "registration belongs to another user")
	}
	return reg, nil
}

// ListByEvent returns all registrations for an event.
func (s *Service) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("event not found")
		}
		return nil, apperr.Internal(err, "failed to load event")
	}
	list, err := s.regs.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list registrations")
	}
	return list, nil
}

// ListByUser returns all registrations of a user.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	list, err := s.regs.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list registrations")
	}
	return list, nil
}

// SetPaymentStatus records the admin payment flag together with its audit entry.
// Approval does not depend on it.
func (s *Service) SetPaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus, actorID uuid.UUID) (*models.Registration, error) {
	var reg *models.Registration
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		reg, err = s.regs.UpdatePaymentStatus(ctx, id, status)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("registration not found")
		}
		if err != nil {
			return apperr.Internal(err, "failed to update payment status")
		}
		entry := &models.AuditLogEntry{ActorID: actorID, RegistrationID: id, Action: "payment marked " + string(status)}
		if err := s.audit.Append(ctx, entry); err != nil {
			return apperr.Internal(err, "failed to record audit entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("payment status updated",
		zap.String("registration_id", id.String()),
		zap.String("payment_status", string(status)),
		zap.String("actor_id", actorID.String()))
	return reg, nil
}

func duplicate() error {
	return apperr.New(apperr.KindDuplicateRegistration, "already registered for this event")
}

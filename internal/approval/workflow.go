// Package approval moves registrations out of pending and keeps the slot counter equal
// to the number of approved registrations.
package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuspass/backend/internal/ledger"
	"github.com/campuspass/backend/internal/metrics"
	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/notifications"
	"github.com/campuspass/backend/internal/store"
	"github.com/campuspass/backend/pkg/apperr"
)

// ReversalAction is the audit text for an approved to rejected override.
const ReversalAction = "approval reversed"

// Deps are the collaborators of a Workflow.
type Deps struct {
	Registrations store.RegistrationStore
	Audit         store.AuditStore
	Tx            store.Transactor
	Ledger        *ledger.Ledger
}

// Workflow applies admin decisions to pending registrations.
type Workflow struct {
	regs     store.RegistrationStore
	audit    store.AuditStore
	tx       store.Transactor
	ledger   *ledger.Ledger
	dispatch *notifications.Dispatch
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// New creates a Workflow. m and dispatch may be nil.
func New(deps Deps, dispatch *notifications.Dispatch, m *metrics.Metrics, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		regs:     deps.Registrations,
		audit:    deps.Audit,
		tx:       deps.Tx,
		ledger:   deps.Ledger,
		dispatch: dispatch,
		metrics:  m,
		logger:   logger,
	}
}

// Decide approves or rejects a pending registration. Approval takes a slot in the same
// transaction as the status change, so either both happen or neither does.
func (w *Workflow) Decide(ctx context.Context, registrationID uuid.UUID, decision models.RegistrationStatus, actorID uuid.UUID) (reg *models.Registration, err error) {
	defer func() { w.metrics.ObserveDecision(string(decision), err) }()

	if decision != models.RegistrationApproved && decision != models.RegistrationRejected {
		return nil, apperr.New(apperr.KindBadRequest, "decision must be approved or rejected")
	}

	err = w.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := w.load(ctx, registrationID)
		if err != nil {
			return err
		}
		if current.Status != models.RegistrationPending {
			return invalidTransition(current.Status, decision)
		}
		if decision == models.RegistrationApproved {
			if err := w.ledger.ReserveSlot(ctx, current.EventID); err != nil {
				return err
			}
		}
		reg, err = w.transition(ctx, current, decision)
		if err != nil {
			return err
		}
		return w.record(ctx, actorID, registrationID, string(decision))
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("registration decided",
		zap.String("registration_id", registrationID.String()),
		zap.String("decision", string(decision)),
		zap.String("actor_id", actorID.String()))
	w.dispatch.Send(ctx, notifications.NoticeFor(reg))
	return reg, nil
}

// Reverse rejects an approved registration and frees its slot. It is the only way an
// approved registration leaves approved.
func (w *Workflow) Reverse(ctx context.Context, registrationID uuid.UUID, actorID uuid.UUID) (reg *models.Registration, err error) {
	defer func() { w.metrics.ObserveDecision("reversed", err) }()

	err = w.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := w.load(ctx, registrationID)
		if err != nil {
			return err
		}
		if current.Status != models.RegistrationApproved {
			return invalidTransition(current.Status, models.RegistrationRejected)
		}
		if err := w.ledger.ReleaseSlot(ctx, current.EventID); err != nil {
			return err
		}
		reg, err = w.transition(ctx, current, models.RegistrationRejected)
		if err != nil {
			return err
		}
		return w.record(ctx, actorID, registrationID, ReversalAction)
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("approval reversed",
		zap.String("registration_id", registrationID.String()),
		zap.String("actor_id", actorID.String()))
	w.dispatch.Send(ctx, notifications.NoticeFor(reg))
	return reg, nil
}

// History returns the audit trail of a registration, oldest first.
func (w *Workflow) History(ctx context.Context, registrationID uuid.UUID) ([]models.AuditLogEntry, error) {
	if _, err := w.load(ctx, registrationID); err != nil {
		return nil, err
	}
	entries, err := w.audit.ListByRegistration(ctx, registrationID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load audit history")
	}
	if entries == nil {
		entries = []models.AuditLogEntry{}
	}
	return entries, nil
}

func (w *Workflow) load(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	reg, err := w.regs.GetForUpdate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("registration not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load registration")
	}
	return reg, nil
}

func (w *Workflow) transition(ctx context.Context, current *models.Registration, to models.RegistrationStatus) (*models.Registration, error) {
	if !current.Status.CanTransitionTo(to) {
		return nil, invalidTransition(current.Status, to)
	}
	reg, err := w.regs.UpdateStatus(ctx, current.ID, current.Status, to)
	switch {
	case errors.Is(err, store.ErrStaleState):
		return nil, apperr.New(apperr.KindInvalidTransition, "registration was decided concurrently")
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.NotFound("registration not found")
	case err != nil:
		return nil, apperr.Internal(err, "failed to update registration status")
	}
	return reg, nil
}

func (w *Workflow) record(ctx context.Context, actorID, registrationID uuid.UUID, action string) error {
	entry := &models.AuditLogEntry{ActorID: actorID, RegistrationID: registrationID, Action: action}
	if err := w.audit.Append(ctx, entry); err != nil {
		return apperr.Internal(err, "failed to record audit entry")
	}
	return nil
}

func invalidTransition(from, to models.RegistrationStatus) error {
	return apperr.New(apperr.KindInvalidTransition, fmt.Sprintf("cannot move registration from %s to %s", from, to))
}

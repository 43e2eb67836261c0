// Package ledger owns the confirmed-attendee count of events and the rules deciding
// whether an event still accepts registrations.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/store"
	"github.com/campuspass/backend/pkg/apperr"
)

const (
	// ClosureWindow is how long before start registration closes when no earlier deadline is set.
	ClosureWindow = time.Hour
	// DefaultEventDuration is assumed for events without an end date.
	DefaultEventDuration = 24 * time.Hour
)

// CloseTime returns the effective registration close time: the earlier of the
// registration deadline and start minus ClosureWindow.
func CloseTime(e *models.Event) time.Time {
	closeAt := e.StartDate.Add(-ClosureWindow)
	if e.RegistrationDeadline != nil && e.RegistrationDeadline.Before(closeAt) {
		closeAt = *e.RegistrationDeadline
	}
	return closeAt
}

// EndTime returns the event end, falling back to DefaultEventDuration after start.
func EndTime(e *models.Event) time.Time {
	if e.EndDate != nil {
		return *e.EndDate
	}
	return e.StartDate.Add(DefaultEventDuration)
}

// DeriveStatus recomputes the lifecycle status from dates. Cancelled is sticky.
func DeriveStatus(e *models.Event, now time.Time) models.EventStatus {
	if e.Status == models.EventStatusCancelled {
		return models.EventStatusCancelled
	}
	switch {
	case now.Before(e.StartDate):
		return models.EventStatusUpcoming
	case now.Before(EndTime(e)):
		return models.EventStatusActive
	default:
		return models.EventStatusCompleted
	}
}

// IsRegistrationOpen reports whether the event is upcoming, before its close time
// and below its registration limit.
func IsRegistrationOpen(e *models.Event, now time.Time) bool {
	return DeriveStatus(e, now) == models.EventStatusUpcoming &&
		now.Before(CloseTime(e)) &&
		e.CurrentRegistrations < e.RegistrationLimit
}

// Ledger mutates the confirmed-attendee counter through a store.SlotCounter.
type Ledger struct {
	counter store.SlotCounter
	logger  *zap.Logger
}

// New creates a Ledger. It is the only holder of the SlotCounter.
func New(counter store.SlotCounter, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{counter: counter, logger: logger}
}

// ReserveSlot atomically takes one slot of the event.
func (l *Ledger) ReserveSlot(ctx context.Context, eventID uuid.UUID) error {
	n, err := l.counter.IncrementRegistrations(ctx, eventID)
	switch {
	case errors.Is(err, store.ErrLimitReached):
		return apperr.New(apperr.KindCapacityExceeded, "event has reached its registration limit")
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("event not found")
	case err != nil:
		return apperr.Internal(err, "failed to reserve slot")
	}
	l.logger.Debug("slot reserved", zap.String("event_id", eventID.String()), zap.Int("current_registrations", n))
	return nil
}

// ReleaseSlot atomically frees one slot of the event. It never goes below zero.
func (l *Ledger) ReleaseSlot(ctx context.Context, eventID uuid.UUID) error {
	n, err := l.counter.DecrementRegistrations(ctx, eventID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("event not found")
	case err != nil:
		return apperr.Internal(err, "failed to release slot")
	}
	l.logger.Debug("slot released", zap.String("event_id", eventID.String()), zap.Int("current_registrations", n))
	return nil
}

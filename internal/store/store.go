// Package store declares the persistence contracts the registration core depends on.
// Postgres repositories live next to their resource packages; internal/store/memory
// provides an in-process implementation with the same atomicity guarantees.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/campuspass/backend/internal/models"
)

// Sentinel errors for storage facts. Services translate them into apperr kinds.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrLimitReached = errors.New("limit reached")
	ErrStaleState   = errors.New("stale state")
)

// EventStore reads and creates events. It cannot write current_registrations.
type EventStore interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

// SlotCounter is the only write path to an event's current_registrations.
// Both operations are single conditional updates against the backing store.
type SlotCounter interface {
	// IncrementRegistrations adds one slot unless the limit is reached (ErrLimitReached).
	IncrementRegistrations(ctx context.Context, eventID uuid.UUID) (int, error)
	// DecrementRegistrations removes one slot; it never goes below zero.
	DecrementRegistrations(ctx context.Context, eventID uuid.UUID) (int, error)
}

// RegistrationStore persists registrations. Create enforces (event_id, user_id) uniqueness
// and returns ErrConflict on violation.
type RegistrationStore interface {
	Create(ctx context.Context, r *models.Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	// GetForUpdate loads a registration and locks it for the enclosing transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	GetByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error)
	// UpdateStatus moves a registration from one status to another only if it is still in from.
	// Returns ErrStaleState when the current status differs.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.RegistrationStatus) (*models.Registration, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) (*models.Registration, error)
}

// UserStore resolves users managed by the external user service.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuditStore is append-only.
type AuditStore interface {
	Append(ctx context.Context, entry *models.AuditLogEntry) error
	ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]models.AuditLogEntry, error)
	// ListSince returns entries created strictly after the cursor, oldest first.
	ListSince(ctx context.Context, after time.Time, limit int) ([]models.AuditLogEntry, error)
}

// EmailLogStore records notification deliveries.
type EmailLogStore interface {
	Create(ctx context.Context, l *models.EmailLog) error
	ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]models.EmailLog, error)
}

// Transactor runs fn inside a single store transaction carried by ctx.
// Returning an error from fn rolls back every write made through ctx.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

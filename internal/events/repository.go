package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/store"
	"github.com/campuspass/backend/pkg/database"
)

const eventColumns = `id, title, description, location, college_name, start_date, end_date, registration_deadline,
	registration_limit, current_registrations, status,
	COALESCE(created_by, '00000000-0000-0000-0000-000000000000'::uuid), created_at, updated_at`

// Repository handles event persistence. It implements store.EventStore and store.SlotCounter.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new event. current_registrations always starts at zero.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (id, title, description, location, college_name, start_date, end_date,
		registration_deadline, registration_limit, status, created_by)
		VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, current_registrations, created_at, updated_at`
	if e.Status == "" {
		e.Status = models.EventStatusUpcoming
	}
	var id *uuid.UUID
	if e.ID != uuid.Nil {
		id = &e.ID
	}
	return database.Conn(ctx, r.pool).QueryRow(ctx, q, id, e.Title, e.Description, e.Location, e.CollegeName,
		e.StartDate, e.EndDate, e.RegistrationDeadline, e.RegistrationLimit, string(e.Status), e.CreatedBy).
		Scan(&e.ID, &e.CurrentRegistrations, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	var e models.Event
	var status string
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, id).Scan(&e.ID, &e.Title, &e.Description, &e.Location,
		&e.CollegeName, &e.StartDate, &e.EndDate, &e.RegistrationDeadline, &e.RegistrationLimit,
		&e.CurrentRegistrations, &status, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Status = models.EventStatus(status)
	return &e, nil
}

// Cancel marks the event cancelled. Cancellation is never undone by date derivation.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE events SET status = 'cancelled', updated_at = NOW() WHERE id = $1`
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// IncrementRegistrations takes one slot in a single conditional UPDATE, so concurrent
// callers can never push the counter past the limit.
func (r *Repository) IncrementRegistrations(ctx context.Context, eventID uuid.UUID) (int, error) {
	const q = `UPDATE events SET current_registrations = current_registrations + 1, updated_at = NOW()
		WHERE id = $1 AND current_registrations < registration_limit
		RETURNING current_registrations`
	var n int
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, eventID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.missOrCurrent(ctx, eventID, store.ErrLimitReached)
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// DecrementRegistrations frees one slot; the WHERE clause keeps the counter at or above zero.
func (r *Repository) DecrementRegistrations(ctx context.Context, eventID uuid.UUID) (int, error) {
	const q = `UPDATE events SET current_registrations = current_registrations - 1, updated_at = NOW()
		WHERE id = $1 AND current_registrations > 0
		RETURNING current_registrations`
	var n int
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, eventID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.missOrCurrent(ctx, eventID, nil)
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// missOrCurrent distinguishes a missing event from a conditional update that matched no row.
func (r *Repository) missOrCurrent(ctx context.Context, eventID uuid.UUID, whenPresent error) (int, error) {
	var n int
	err := database.Conn(ctx, r.pool).QueryRow(ctx, `SELECT current_registrations FROM events WHERE id = $1`, eventID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return n, whenPresent
}

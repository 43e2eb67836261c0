package registrations

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

const registrationColumns = `id, event_id, user_id, status, payment_status, created_at, updated_at`

// Repository handles registration persistence. It implements store.RegistrationStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a registration. The (event_id, user_id) unique constraint decides
// concurrent duplicates; the loser gets store.ErrConflict.
func (r *Repository) Create(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO registrations (event_id, user_id, status, payment_status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	if reg.Status == "" {
		reg.Status = models.RegistrationPending
	}
	if reg.PaymentStatus == "" {
		reg.PaymentStatus = models.PaymentUnpaid
	}
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, reg.EventID, reg.UserID, string(reg.Status), string(reg.PaymentStatus)).
		Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
	switch {
	case database.IsUniqueViolation(err):
		return store.ErrConflict
	case database.IsForeignKeyViolation(err):
		return store.ErrNotFound
	}
	return err
}

// GetByID returns a registration by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return r.getOne(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id)
}

// GetForUpdate returns a registration and holds a row lock until the transaction ends.
func (r *Repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return r.getOne(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`, id)
}

// GetByEventAndUser returns the registration of userID for eventID.
func (r *Repository) GetByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	return r.getOne(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 AND user_id = $2`, eventID, userID)
}

// ListByEvent returns all registrations for an event, oldest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 ORDER BY created_at, id`, eventID)
}

// ListByUser returns all registrations of a user, oldest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE user_id = $1 ORDER BY created_at, id`, userID)
}

// UpdateStatus sets status to `to` only while it is still `from`.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.RegistrationStatus) (*models.Registration, error) {
	q := `UPDATE registrations SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + registrationColumns
	reg, err := r.getOne(ctx, q, id, string(from), string(to))
	if errors.Is(err, store.ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, store.ErrStaleState
	}
	return reg, err
}

// UpdatePaymentStatus records the payment flag. It does not affect approval.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) (*models.Registration, error) {
	q := `UPDATE registrations SET payment_status = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + registrationColumns
	return r.getOne(ctx, q, id, string(status))
}

func (r *Repository) getOne(ctx context.Context, q string, args ...any) (*models.Registration, error) {
	reg, err := scanRegistration(database.Conn(ctx, r.pool).QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]models.Registration, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	var status, payment string
	if err := row.Scan(&reg.ID, &reg.EventID, &reg.UserID, &status, &payment, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
		return nil, err
	}
	reg.Status = models.RegistrationStatus(status)
	reg.PaymentStatus = models.PaymentStatus(payment)
	return &reg, nil
}

// Package audit stores the append-only trail of administrative actions and ships it to
// object storage.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/pkg/database"
)

// Repository handles audit_logs persistence. It implements store.AuditStore.
// There is no update or delete.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts an entry inside the caller's transaction when there is one.
func (r *Repository) Append(ctx context.Context, e *models.AuditLogEntry) error {
	const q = `INSERT INTO audit_logs (actor_id, registration_id, action)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	return database.Conn(ctx, r.pool).QueryRow(ctx, q, e.ActorID, e.RegistrationID, e.Action).
		Scan(&e.ID, &e.CreatedAt)
}

// ListByRegistration returns the entries of a registration, oldest first.
func (r *Repository) ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]models.AuditLogEntry, error) {
	const q = `SELECT id, actor_id, registration_id, action, created_at
		FROM audit_logs WHERE registration_id = $1 ORDER BY created_at, id`
	return r.list(ctx, q, registrationID)
}

// ListSince returns up to limit entries created strictly after `after`, oldest first.
func (r *Repository) ListSince(ctx context.Context, after time.Time, limit int) ([]models.AuditLogEntry, error) {
	const q = `SELECT id, actor_id, registration_id, action, created_at
		FROM audit_logs WHERE created_at > $1 ORDER BY created_at, id LIMIT $2`
	return r.list(ctx, q, after, limit)
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]models.AuditLogEntry, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AuditLogEntry, error) {
		var e models.AuditLogEntry
		err := row.Scan(&e.ID, &e.ActorID, &e.RegistrationID, &e.Action, &e.CreatedAt)
		return e, err
	})
}

package auth

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

// Repository reads the user directory mirrored from the identity service.
// It implements store.UserStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a user repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, full_name, role, created_at FROM users WHERE id = $1`
	var u models.User
	var role string
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.FullName, &role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// Upsert mirrors a directory entry, keyed by email.
func (r *Repository) Upsert(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (id, email, full_name, role)
		VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET full_name = EXCLUDED.full_name, role = EXCLUDED.role
		RETURNING id, created_at`
	var id *uuid.UUID
	if u.ID != uuid.Nil {
		id = &u.ID
	}
	if u.Role == "" {
		u.Role = models.RoleStudent
	}
	return database.Conn(ctx, r.pool).QueryRow(ctx, q, id, u.Email, u.FullName, string(u.Role)).Scan(&u.ID, &u.CreatedAt)
}

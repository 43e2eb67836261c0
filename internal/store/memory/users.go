package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/store"
)

// Users implements store.UserStore.
type Users struct{ db *DB }

func (s *Users) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	defer s.db.rlock(ctx)()
	u, ok := s.db.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

// Put inserts or replaces a user.
func (s *Users) Put(ctx context.Context, u *models.User) {
	defer s.db.lock(ctx)()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.db.now()
	}
	s.db.users[u.ID] = *u
}

// Delete removes a user. Registrations that reference it are kept.
func (s *Users) Delete(ctx context.Context, id uuid.UUID) {
	defer s.db.lock(ctx)()
	delete(s.db.users, id)
}

package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/store"
)

// Registrations implements store.RegistrationStore.
type Registrations struct{ db *DB }

func (s *Registrations) Create(ctx context.Context, r *models.Registration) error {
	defer s.db.lock(ctx)()
	key := pairKey{r.EventID, r.UserID}
	if _, ok := s.db.byPair[key]; ok {
		return store.ErrConflict
	}
	if _, ok := s.db.events[r.EventID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := s.db.users[r.UserID]; !ok {
		return store.ErrNotFound
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := s.db.now()
	r.CreatedAt, r.UpdatedAt = now, now
	s.db.registrations[r.ID] = *r
	s.db.byPair[key] = r.ID
	return nil
}

func (s *Registrations) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	defer s.db.rlock(ctx)()
	r, ok := s.db.registrations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

// GetForUpdate needs no extra locking: transactions already hold the write lock.
func (s *Registrations) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return s.GetByID(ctx, id)
}

func (s *Registrations) GetByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	defer s.db.rlock(ctx)()
	id, ok := s.db.byPair[pairKey{eventID, userID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	r := s.db.registrations[id]
	return &r, nil
}

func (s *Registrations) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error) {
	return s.list(ctx, func(r models.Registration) bool { return r.EventID == eventID })
}

func (s *Registrations) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	return s.list(ctx, func(r models.Registration) bool { return r.UserID == userID })
}

func (s *Registrations) list(ctx context.Context, match func(models.Registration) bool) ([]models.Registration, error) {
	defer s.db.rlock(ctx)()
	out := []models.Registration{}
	for _, r := range s.db.registrations {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Registrations) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.RegistrationStatus) (*models.Registration, error) {
	defer s.db.lock(ctx)()
	r, ok := s.db.registrations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if r.Status != from {
		return nil, store.ErrStaleState
	}
	r.Status = to
	r.UpdatedAt = s.db.now()
	s.db.registrations[id] = r
	return &r, nil
}

func (s *Registrations) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) (*models.Registration, error) {
	defer s.db.lock(ctx)()
	r, ok := s.db.registrations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.PaymentStatus = status
	r.UpdatedAt = s.db.now()
	s.db.registrations[id] = r
	return &r, nil
}

// CountByStatus returns how many registrations of the event are in status.
func (s *Registrations) CountByStatus(ctx context.Context, eventID uuid.UUID, status models.RegistrationStatus) int {
	defer s.db.rlock(ctx)()
	n := 0
	for _, r := range s.db.registrations {
		if r.EventID == eventID && r.Status == status {
			n++
		}
	}
	return n
}

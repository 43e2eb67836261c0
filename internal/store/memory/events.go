package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/store"
)

// Events implements store.EventStore and store.SlotCounter.
type Events struct{ db *DB }

func (s *Events) Create(ctx context.Context, e *models.Event) error {
	defer s.db.lock(ctx)()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if _, ok := s.db.events[e.ID]; ok {
		return store.ErrConflict
	}
	if e.Status == "" {
		e.Status = models.EventStatusUpcoming
	}
	now := s.db.now()
	e.CurrentRegistrations = 0
	e.CreatedAt, e.UpdatedAt = now, now
	s.db.events[e.ID] = *e
	return nil
}

func (s *Events) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	defer s.db.rlock(ctx)()
	e, ok := s.db.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s *Events) Cancel(ctx context.Context, id uuid.UUID) error {
	defer s.db.lock(ctx)()
	e, ok := s.db.events[id]
	if !ok {
		return store.ErrNotFound
	}
	e.Status = models.EventStatusCancelled
	e.UpdatedAt = s.db.now()
	s.db.events[id] = e
	return nil
}

func (s *Events) IncrementRegistrations(ctx context.Context, eventID uuid.UUID) (int, error) {
	defer s.db.lock(ctx)()
	e, ok := s.db.events[eventID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if e.CurrentRegistrations >= e.RegistrationLimit {
		return e.CurrentRegistrations, store.ErrLimitReached
	}
	e.CurrentRegistrations++
	e.UpdatedAt = s.db.now()
	s.db.events[eventID] = e
	return e.CurrentRegistrations, nil
}

func (s *Events) DecrementRegistrations(ctx context.Context, eventID uuid.UUID) (int, error) {
	defer s.db.lock(ctx)()
	e, ok := s.db.events[eventID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if e.CurrentRegistrations > 0 {
		e.CurrentRegistrations--
		e.UpdatedAt = s.db.now()
		s.db.events[eventID] = e
	}
	return e.CurrentRegistrations, nil
}

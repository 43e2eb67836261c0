package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/campuspass/backend/internal/models"
)

// EmailLogs implements store.EmailLogStore.
type EmailLogs struct{ db *DB }

func (s *EmailLogs) Create(ctx context.Context, l *models.EmailLog) error {
	defer s.db.lock(ctx)()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.db.now()
	}
	s.db.emails = append(s.db.emails, *l)
	return nil
}

func (s *EmailLogs) ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]models.EmailLog, error) {
	defer s.db.rlock(ctx)()
	out := []models.EmailLog{}
	for _, l := range s.db.emails {
		if l.RegistrationID != nil && *l.RegistrationID == registrationID {
			out = append(out, l)
		}
	}
	return out, nil
}

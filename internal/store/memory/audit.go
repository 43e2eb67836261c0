package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/campuspass/backend/internal/models"
)

// Audit implements store.AuditStore.
type Audit struct{ db *DB }

func (s *Audit) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	defer s.db.lock(ctx)()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.db.now()
	}
	s.db.audit = append(s.db.audit, *entry)
	return nil
}

func (s *Audit) ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]models.AuditLogEntry, error) {
	defer s.db.rlock(ctx)()
	out := []models.AuditLogEntry{}
	for _, e := range s.db.audit {
		if e.RegistrationID == registrationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Audit) ListSince(ctx context.Context, after time.Time, limit int) ([]models.AuditLogEntry, error) {
	defer s.db.rlock(ctx)()
	out := []models.AuditLogEntry{}
	for _, e := range s.db.audit {
		if e.CreatedAt.After(after) {
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

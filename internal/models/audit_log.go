package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLogEntry records an administrative action on a registration. Entries are append-only.
type AuditLogEntry struct {
	ID             uuid.UUID `json:"id"`
	ActorID        uuid.UUID `json:"actor_id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	Action         string    `json:"action"`
	CreatedAt      time.Time `json:"created_at"`
}

package server

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuspass/backend/internal/audit"
	"github.com/campuspass/backend/internal/auth"
	"github.com/campuspass/backend/internal/emaillogs"
	"github.com/campuspass/backend/internal/events"
	"github.com/campuspass/backend/internal/registrations"
	"github.com/campuspass/backend/internal/store"
	"github.com/campuspass/backend/internal/store/memory"
	"github.com/campuspass/backend/pkg/database"
)

// Backend bundles every store the HTTP surface and the worker need.
type Backend struct {
	Events        store.EventStore
	Slots         store.SlotCounter
	Registrations store.RegistrationStore
	Users         store.UserStore
	Audit         store.AuditStore
	EmailLogs     store.EmailLogStore
	Tx            store.Transactor
}

// PostgresBackend wires the pgx repositories over one pool.
func PostgresBackend(pool *pgxpool.Pool) Backend {
	eventRepo := events.NewRepository(pool)
	return Backend{
		Events:        eventRepo,
		Slots:         eventRepo,
		Registrations: registrations.NewRepository(pool),
		Users:         auth.NewRepository(pool),
		Audit:         audit.NewRepository(pool),
		EmailLogs:     emaillogs.NewRepository(pool),
		Tx:            database.NewTransactor(pool),
	}
}

// MemoryBackend wires the in-process store.
func MemoryBackend(db *memory.DB) Backend {
	eventStore := db.Events()
	return Backend{
		Events:        eventStore,
		Slots:         eventStore,
		Registrations: db.Registrations(),
		Users:         db.Users(),
		Audit:         db.Audit(),
		EmailLogs:     db.EmailLogs(),
		Tx:            db,
	}
}

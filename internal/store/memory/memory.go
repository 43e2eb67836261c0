// Package memory is an in-process implementation of the store contracts.
// A single RW lock makes every operation atomic; WithinTx holds the write lock for the
// whole callback and restores a snapshot when the callback fails.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campuspass/backend/internal/models"
)

type pairKey struct {
	eventID uuid.UUID
	userID  uuid.UUID
}

type txKey struct{ db *DB }

// DB holds all in-memory tables.
type DB struct {
	mu            sync.RWMutex
	events        map[uuid.UUID]models.Event
	registrations map[uuid.UUID]models.Registration
	byPair        map[pairKey]uuid.UUID
	users         map[uuid.UUID]models.User
	audit         []models.AuditLogEntry
	emails        []models.EmailLog
	now           func() time.Time
}

// New creates an empty DB.
func New() *DB {
	return &DB{
		events:        make(map[uuid.UUID]models.Event),
		registrations: make(map[uuid.UUID]models.Registration),
		byPair:        make(map[pairKey]uuid.UUID),
		users:         make(map[uuid.UUID]models.User),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the timestamp source used for created_at/updated_at.
func (d *DB) WithClock(now func() time.Time) *DB {
	d.now = now
	return d
}

func (d *DB) inTx(ctx context.Context) bool {
	return ctx.Value(txKey{d}) != nil
}

func (d *DB) lock(ctx context.Context) func() {
	if d.inTx(ctx) {
		return func() {}
	}
	d.mu.Lock()
	return d.mu.Unlock
}

func (d *DB) rlock(ctx context.Context) func() {
	if d.inTx(ctx) {
		return func() {}
	}
	d.mu.RLock()
	return d.mu.RUnlock
}

// WithinTx runs fn with exclusive access to the DB and rolls back on error.
func (d *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if d.inTx(ctx) {
		return fn(ctx)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := d.snapshot()
	if err := fn(context.WithValue(ctx, txKey{d}, true)); err != nil {
		d.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	events        map[uuid.UUID]models.Event
	registrations map[uuid.UUID]models.Registration
	byPair        map[pairKey]uuid.UUID
	auditLen      int
	emailsLen     int
}

func (d *DB) snapshot() snapshot {
	s := snapshot{
		events:        make(map[uuid.UUID]models.Event, len(d.events)),
		registrations: make(map[uuid.UUID]models.Registration, len(d.registrations)),
		byPair:        make(map[pairKey]uuid.UUID, len(d.byPair)),
		auditLen:      len(d.audit),
		emailsLen:     len(d.emails),
	}
	for k, v := range d.events {
		s.events[k] = v
	}
	for k, v := range d.registrations {
		s.registrations[k] = v
	}
	for k, v := range d.byPair {
		s.byPair[k] = v
	}
	return s
}

// restore works because audit and email logs are append-only.
func (d *DB) restore(s snapshot) {
	d.events = s.events
	d.registrations = s.registrations
	d.byPair = s.byPair
	d.audit = d.audit[:s.auditLen]
	d.emails = d.emails[:s.emailsLen]
}

// Events returns the event table, which also implements store.SlotCounter.
func (d *DB) Events() *Events { return &Events{db: d} }

// Registrations returns the registration table.
func (d *DB) Registrations() *Registrations { return &Registrations{db: d} }

// Users returns the user table.
func (d *DB) Users() *Users { return &Users{db: d} }

// Audit returns the audit log.
func (d *DB) Audit() *Audit { return &Audit{db: d} }

// EmailLogs returns the email log.
func (d *DB) EmailLogs() *EmailLogs { return &EmailLogs{db: d} }

package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle status of an event.
type EventStatus string

const (
	EventStatusUpcoming  EventStatus = "upcoming"
	EventStatusActive    EventStatus = "active"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// Valid reports whether s is one of the known event statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusUpcoming, EventStatusActive, EventStatusCompleted, EventStatusCancelled:
		return true
	}
	return false
}

// ParseEventStatus converts a stored or submitted value into an EventStatus.
func ParseEventStatus(v string) (EventStatus, bool) {
	s := EventStatus(v)
	return s, s.Valid()
}

// Event is a capacity-limited campus event. CurrentRegistrations is maintained by the ledger only.
type Event struct {
	ID                   uuid.UUID   `json:"id"`
	Title                string      `json:"title"`
	Description          string      `json:"description"`
	Location             string      `json:"location"`
	CollegeName          string      `json:"college_name"`
	StartDate            time.Time   `json:"start_date"`
	EndDate              *time.Time  `json:"end_date,omitempty"`
	RegistrationDeadline *time.Time  `json:"registration_deadline,omitempty"`
	RegistrationLimit    int         `json:"registration_limit"`
	CurrentRegistrations int         `json:"current_registrations"`
	Status               EventStatus `json:"status"`
	CreatedBy            uuid.UUID   `json:"created_by"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// Remaining returns the number of unconsumed slots.
func (e *Event) Remaining() int {
	if n := e.RegistrationLimit - e.CurrentRegistrations; n > 0 {
		return n
	}
	return 0
}

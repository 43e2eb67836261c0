package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the moderation status of a registration.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

// Valid reports whether s is a known registration status.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationPending, RegistrationApproved, RegistrationRejected:
		return true
	}
	return false
}

// Decided reports whether s is a terminal decision (approved or rejected).
func (s RegistrationStatus) Decided() bool {
	return s == RegistrationApproved || s == RegistrationRejected
}

// CanTransitionTo reports whether the move from s to next is allowed.
// pending -> approved|rejected is the normal path; approved -> rejected is the
// administrative reversal. Nothing leaves rejected.
func (s RegistrationStatus) CanTransitionTo(next RegistrationStatus) bool {
	switch s {
	case RegistrationPending:
		return next.Decided()
	case RegistrationApproved:
		return next == RegistrationRejected
	}
	return false
}

// ParseRegistrationStatus converts a stored or submitted value into a RegistrationStatus.
func ParseRegistrationStatus(v string) (RegistrationStatus, bool) {
	s := RegistrationStatus(v)
	return s, s.Valid()
}

// PaymentStatus tracks settlement; settlement itself happens elsewhere.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// ParsePaymentStatus converts a submitted value into a PaymentStatus.
func ParsePaymentStatus(v string) (PaymentStatus, bool) {
	s := PaymentStatus(v)
	return s, s == PaymentUnpaid || s == PaymentPaid
}

// Registration is one user's intent to attend one event.
type Registration struct {
	ID            uuid.UUID          `json:"id"`
	EventID       uuid.UUID          `json:"event_id"`
	UserID        uuid.UUID          `json:"user_id"`
	Status        RegistrationStatus `json:"status"`
	PaymentStatus PaymentStatus      `json:"payment_status"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// ShortID returns the first eight characters of the id in upper case, used for human cross-reference.
func (r *Registration) ShortID() string {
	s := r.ID.String()
	if len(s) > 8 {
		s = s[:8]
	}
	return strings.ToUpper(s)
}

// Package verification answers whether a scanned credential currently denotes an
// approved registration. It never writes.
package verification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuspass/backend/internal/credentials"
	"github.com/campuspass/backend/internal/ledger"
	"github.com/campuspass/backend/internal/metrics"
	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/store"
	"github.com/campuspass/backend/pkg/apperr"
)

// Reasons reported when a credential does not verify.
const (
	ReasonNotFound       = "not_found"
	ReasonNotApproved    = "not_approved"
	ReasonInvalidPayload = "invalid_payload"

	resultVerified = "verified"
)

// EventSummary is what a check-in screen shows about the event.
type EventSummary struct {
	ID          uuid.UUID          `json:"id"`
	Title       string             `json:"title"`
	StartDate   time.Time          `json:"start_date"`
	Location    string             `json:"location"`
	CollegeName string             `json:"college_name"`
	Status      models.EventStatus `json:"status"`
}

// Attendee is what a check-in screen shows about the ticket holder.
type Attendee struct {
	ID             uuid.UUID            `json:"id"`
	FullName       string               `json:"full_name"`
	Email          string               `json:"email"`
	RegistrationID uuid.UUID            `json:"registration_id"`
	PaymentStatus  models.PaymentStatus `json:"payment_status"`
}

// Result is the verification answer. Event and Attendee are set only when Verified.
type Result struct {
	Verified bool          `json:"verified"`
	Reason   string        `json:"reason,omitempty"`
	Event    *EventSummary `json:"event,omitempty"`
	Attendee *Attendee     `json:"attendee,omitempty"`
}

// Stores are the read-only stores a Service needs.
type Stores struct {
	Registrations store.RegistrationStore
	Events        store.EventStore
	Users         store.UserStore
}

// Service verifies registration ids and scanned ticket payloads.
type Service struct {
	stores  Stores
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService creates a verification service. m may be nil.
func NewService(stores Stores, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{stores: stores, now: time.Now, metrics: m, logger: logger}
}

// Verify reports whether registrationID denotes an approved registration. Unknown
// and malformed ids are a negative result, not an error; only store faults return one.
func (s *Service) Verify(ctx context.Context, registrationID string) (Result, error) {
	res, err := s.verify(ctx, registrationID)
	if err != nil {
		return Result{}, err
	}
	s.observe(res)
	return res, nil
}

// VerifyPayload verifies the raw content of a scanned ticket QR code. Only the
// embedded registrationId is trusted.
func (s *Service) VerifyPayload(ctx context.Context, raw string) (Result, error) {
	p, err := credentials.ParsePayload([]byte(raw))
	if err != nil {
		res := Result{Reason: ReasonInvalidPayload}
		s.observe(res)
		return res, nil
	}
	return s.Verify(ctx, p.RegistrationID)
}

func (s *Service) verify(ctx context.Context, raw string) (Result, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return Result{Reason: ReasonNotFound}, nil
	}
	reg, err := s.stores.Registrations.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return Result{}, apperr.Internal(err, "failed to load registration")
	}
	if reg.Status != models.RegistrationApproved {
		return Result{Reason: ReasonNotApproved}, nil
	}

	event, err := s.stores.Events.GetByID(ctx, reg.EventID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return Result{}, apperr.Internal(err, "failed to load event")
	}
	user, err := s.stores.Users.GetByID(ctx, reg.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return Result{}, apperr.Internal(err, "failed to load user")
	}

	return Result{
		Verified: true,
		Event: &EventSummary{
			ID:          event.ID,
			Title:       event.Title,
			StartDate:   event.StartDate,
			Location:    event.Location,
			CollegeName: event.CollegeName,
			Status:      ledger.DeriveStatus(event, s.now()),
		},
		Attendee: &Attendee{
			ID:             user.ID,
			FullName:       user.FullName,
			Email:          user.Email,
			RegistrationID: reg.ID,
			PaymentStatus:  reg.PaymentStatus,
		},
	}, nil
}

func (s *Service) observe(res Result) {
	result := res.Reason
	if res.Verified {
		result = resultVerified
	}
	s.metrics.ObserveVerification(result)
	s.logger.Debug("credential verified", zap.Bool("verified", res.Verified), zap.String("result", result))
}

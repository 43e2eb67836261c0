package credentials

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuspass/backend/internal/metrics"
	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/store"
	"github.com/campuspass/backend/pkg/apperr"
)

// Kinds of credential.
const (
	KindTicket      = "ticket"
	KindCertificate = "certificate"
)

// ContentTypePDF is the media type of every rendered credential.
const ContentTypePDF = "application/pdf"

// Document is a rendered credential ready to stream.
type Document struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Stores are the read-only stores an Issuer needs.
type Stores struct {
	Registrations store.RegistrationStore
	Events        store.EventStore
	Users         store.UserStore
}

// Issuer gates and renders credentials.
type Issuer struct {
	stores   Stores
	renderer *Renderer
	now      func() time.Time
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewIssuer creates an Issuer. m may be nil.
func NewIssuer(stores Stores, renderer *Renderer, m *metrics.Metrics, logger *zap.Logger) *Issuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Issuer{stores: stores, renderer: renderer, now: time.Now, metrics: m, logger: logger}
}

// IssueTicket renders the ticket of an approved registration.
func (i *Issuer) IssueTicket(ctx context.Context, registrationID uuid.UUID) (*Document, error) {
	return i.issue(ctx, nil, registrationID, KindTicket)
}

// IssueCertificate renders the participation certificate of an approved registration.
func (i *Issuer) IssueCertificate(ctx context.Context, registrationID uuid.UUID) (*Document, error) {
	return i.issue(ctx, nil, registrationID, KindCertificate)
}

// IssueFor renders kind for p, who must be an admin or the registration's owner.
func (i *Issuer) IssueFor(ctx context.Context, p models.Principal, registrationID uuid.UUID, kind string) (*Document, error) {
	return i.issue(ctx, &p, registrationID, kind)
}

func (i *Issuer) issue(ctx context.Context, p *models.Principal, registrationID uuid.UUID, kind string) (doc *Document, err error) {
	defer func() { i.metrics.ObserveCredential(kind, err) }()

	subject, err := i.load(ctx, p, registrationID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var content []byte
	switch kind {
	case KindTicket:
		content, err = i.renderer.Ticket(subject)
	case KindCertificate:
		content, err = i.renderer.Certificate(subject)
	default:
		return nil, apperr.New(apperr.KindBadRequest, "unknown credential kind "+kind)
	}
	i.metrics.ObserveRender(kind, time.Since(start))
	if err != nil {
		return nil, apperr.Internal(err, "failed to render "+kind)
	}

	i.logger.Info("credential issued",
		zap.String("kind", kind),
		zap.String("registration_id", registrationID.String()),
		zap.Int("bytes", len(content)))
	return &Document{
		Filename:    kind + "-" + subject.Registration.ShortID() + ".pdf",
		ContentType: ContentTypePDF,
		Content:     content,
	}, nil
}

// load resolves the subject and applies, in order: existence, ownership, eligibility.
func (i *Issuer) load(ctx context.Context, p *models.Principal, id uuid.UUID) (Subject, error) {
	reg, err := i.stores.Registrations.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Subject{}, apperr.NotFound("registration not found")
	}
	if err != nil {
		return Subject{}, apperr.Internal(err, "failed to load registration")
	}
	if p != nil && !p.IsAdmin() && p.UserID != reg.UserID {
		return Subject{}, apperr.New(apperr.KindForbidden, "registration belongs to another user")
	}
	if reg.Status != models.RegistrationApproved {
		return Subject{}, apperr.New(apperr.KindNotEligible, "registration is "+string(reg.Status)+", credentials require approval")
	}

	event, err := i.stores.Events.GetByID(ctx, reg.EventID)
	if errors.Is(err, store.ErrNotFound) {
		return Subject{}, apperr.NotFound("event not found")
	}
	if err != nil {
		return Subject{}, apperr.Internal(err, "failed to load event")
	}
	user, err := i.stores.Users.GetByID(ctx, reg.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return Subject{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return Subject{}, apperr.Internal(err, "failed to load user")
	}
	return Subject{Registration: reg, Event: event, User: user, IssuedAt: i.now()}, nil
}

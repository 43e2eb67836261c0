package credentials

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/store/memory"
	"github.com/campuspass/backend/pkg/apperr"
)

type IssuerSuite struct {
	suite.Suite
	ctx    context.Context
	db     *memory.DB
	issuer *Issuer
	event  *models.Event
	owner  *models.User
}

func TestIssuerSuite(t *testing.T) {
	suite.Run(t, new(IssuerSuite))
}

func (s *IssuerSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = memory.New()
	s.issuer = NewIssuer(Stores{
		Registrations: s.db.Registrations(),
		Events:        s.db.Events(),
		Users:         s.db.Users(),
	}, NewRenderer(RenderOptions{}), nil, nil)

	s.event = &models.Event{Title: "Startup Pitch Day", StartDate: time.Now().Add(72 * time.Hour), RegistrationLimit: 5}
	s.Require().NoError(s.db.Events().Create(s.ctx, s.event))
	s.owner = &models.User{Email: "arjun@college.edu", FullName: "Arjun Rao", Role: models.RoleStudent}
	s.db.Users().Put(s.ctx, s.owner)
}

func (s *IssuerSuite) registration(status models.RegistrationStatus) *models.Registration {
	r := &models.Registration{EventID: s.event.ID, UserID: s.owner.ID, Status: status, PaymentStatus: models.PaymentUnpaid}
	s.Require().NoError(s.db.Registrations().Create(s.ctx, r))
	return r
}

func (s *IssuerSuite) TestTicketForApproved() {
	reg := s.registration(models.RegistrationApproved)

	doc, err := s.issuer.IssueTicket(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal("ticket-"+reg.ShortID()+".pdf", doc.Filename)
	s.Equal(ContentTypePDF, doc.ContentType)
	s.True(bytes.HasPrefix(doc.Content, []byte("%PDF-")))
}

func (s *IssuerSuite) TestCertificateForApproved() {
	reg := s.registration(models.RegistrationApproved)

	doc, err := s.issuer.IssueCertificate(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal("certificate-"+reg.ShortID()+".pdf", doc.Filename)
}

func (s *IssuerSuite) TestEligibilityGate() {
	for _, status := range []models.RegistrationStatus{models.RegistrationPending, models.RegistrationRejected} {
		s.SetupTest()
		reg := s.registration(status)

		_, err := s.issuer.IssueTicket(s.ctx, reg.ID)
		s.True(apperr.Is(err, apperr.KindNotEligible), status)
		_, err = s.issuer.IssueCertificate(s.ctx, reg.ID)
		s.True(apperr.Is(err, apperr.KindNotEligible), status)
	}
}

func (s *IssuerSuite) TestEligibilityFollowsCurrentStatus() {
	reg := s.registration(models.RegistrationApproved)
	_, err := s.issuer.IssueTicket(s.ctx, reg.ID)
	s.Require().NoError(err)

	_, err = s.db.Registrations().UpdateStatus(s.ctx, reg.ID, models.RegistrationApproved, models.RegistrationRejected)
	s.Require().NoError(err)
	_, err = s.issuer.IssueTicket(s.ctx, reg.ID)
	s.True(apperr.Is(err, apperr.KindNotEligible))
}

func (s *IssuerSuite) TestMissingRecords() {
	_, err := s.issuer.IssueTicket(s.ctx, uuid.New())
	s.True(apperr.Is(err, apperr.KindNotFound))

	gone := &models.User{Email: "gone@college.edu", FullName: "Former Student", Role: models.RoleStudent}
	s.db.Users().Put(s.ctx, gone)
	orphan := &models.Registration{EventID: s.event.ID, UserID: gone.ID, Status: models.RegistrationApproved}
	s.Require().NoError(s.db.Registrations().Create(s.ctx, orphan))
	s.db.Users().Delete(s.ctx, gone.ID)
	_, err = s.issuer.IssueTicket(s.ctx, orphan.ID)
	s.True(apperr.Is(err, apperr.KindNotFound), "user missing")
}

func (s *IssuerSuite) TestIssueForChecksOwnership() {
	reg := s.registration(models.RegistrationApproved)

	_, err := s.issuer.IssueFor(s.ctx, models.Principal{UserID: s.owner.ID, Role: models.RoleStudent}, reg.ID, KindTicket)
	s.NoError(err)
	_, err = s.issuer.IssueFor(s.ctx, models.Principal{UserID: uuid.New(), Role: models.RoleAdmin}, reg.ID, KindTicket)
	s.NoError(err)
	_, err = s.issuer.IssueFor(s.ctx, models.Principal{UserID: uuid.New(), Role: models.RoleStudent}, reg.ID, KindTicket)
	s.True(apperr.Is(err, apperr.KindForbidden))
}

func (s *IssuerSuite) TestConcurrentRendering() {
	reg := s.registration(models.RegistrationApproved)
	errs := make(chan error, 16)
	for range 16 {
		go func() {
			_, err := s.issuer.IssueTicket(s.ctx, reg.ID)
			errs <- err
		}()
	}
	for range 16 {
		s.NoError(<-errs)
	}
}

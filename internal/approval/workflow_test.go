package approval

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"

	"github.com/campuspass/backend/internal/ledger"
	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/notifications"
	"github.com/campuspass/backend/internal/notifications/mocks"
	"github.com/campuspass/backend/internal/registrations"
	"github.com/campuspass/backend/internal/store"
	"github.com/campuspass/backend/internal/store/memory"
	"github.com/campuspass/backend/pkg/apperr"
)

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type failingAudit struct{ store.AuditStore }

func (failingAudit) Append(context.Context, *models.AuditLogEntry) error {
	return errors.New("disk full")
}

type WorkflowSuite struct {
	suite.Suite
	ctx   context.Context
	db    *memory.DB
	admin uuid.UUID
	wf    *Workflow
	regs  *registrations.Service
}

func TestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(WorkflowSuite))
}

func (s *WorkflowSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = memory.New()
	s.admin = uuid.New()
	s.wf = s.newWorkflow(s.db.Audit(), nil)
	s.regs = registrations.NewService(registrations.Deps{
		Events:        s.db.Events(),
		Registrations: s.db.Registrations(),
		Audit:         s.db.Audit(),
		Tx:            s.db,
	}, nil, nil, registrations.WithClock(func() time.Time { return testNow }))
}

func (s *WorkflowSuite) newWorkflow(audit store.AuditStore, dispatch *notifications.Dispatch) *Workflow {
	return New(Deps{
		Registrations: s.db.Registrations(),
		Audit:         audit,
		Tx:            s.db,
		Ledger:        ledger.New(s.db.Events(), nil),
	}, dispatch, nil, nil)
}

func (s *WorkflowSuite) event(limit int) *models.Event {
	e := &models.Event{Title: "Alumni Meetup", StartDate: testNow.Add(10 * 24 * time.Hour), RegistrationLimit: limit}
	s.Require().NoError(s.db.Events().Create(s.ctx, e))
	return e
}

func (s *WorkflowSuite) student() uuid.UUID {
	u := &models.User{Email: uuid.NewString() + "@college.edu", FullName: "Test Student", Role: models.RoleStudent}
	s.db.Users().Put(s.ctx, u)
	return u.ID
}

func (s *WorkflowSuite) pending(eventID uuid.UUID) *models.Registration {
	reg, err := s.regs.Register(s.ctx, eventID, s.student())
	s.Require().NoError(err)
	return reg
}

func (s *WorkflowSuite) counter(eventID uuid.UUID) int {
	e, err := s.db.Events().GetByID(s.ctx, eventID)
	s.Require().NoError(err)
	return e.CurrentRegistrations
}

func (s *WorkflowSuite) approvedCount(eventID uuid.UUID) int {
	return s.db.Registrations().CountByStatus(s.ctx, eventID, models.RegistrationApproved)
}

func (s *WorkflowSuite) TestApproveTakesSlotAndAudits() {
	e := s.event(3)
	reg := s.pending(e.ID)

	got, err := s.wf.Decide(s.ctx, reg.ID, models.RegistrationApproved, s.admin)
	s.Require().NoError(err)
	s.Equal(models.RegistrationApproved, got.Status)
	s.Equal(1, s.counter(e.ID))

	entries, err := s.wf.History(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(s.admin, entries[0].ActorID)
	s.Equal("approved", entries[0].Action)
}

func (s *WorkflowSuite) TestRejectLeavesCounter() {
	e := s.event(3)
	reg := s.pending(e.ID)

	got, err := s.wf.Decide(s.ctx, reg.ID, models.RegistrationRejected, s.admin)
	s.Require().NoError(err)
	s.Equal(models.RegistrationRejected, got.Status)
	s.Equal(0, s.counter(e.ID))
}

func (s *WorkflowSuite) TestDecisionsAreOneWay() {
	e := s.event(3)
	approved := s.pending(e.ID)
	rejected := s.pending(e.ID)
	_, err := s.wf.Decide(s.ctx, approved.ID, models.RegistrationApproved, s.admin)
	s.Require().NoError(err)
	_, err = s.wf.Decide(s.ctx, rejected.ID, models.RegistrationRejected, s.admin)
	s.Require().NoError(err)

	for _, tc := range []struct {
		id       uuid.UUID
		decision models.RegistrationStatus
	}{
		{approved.ID, models.RegistrationApproved},
		{approved.ID, models.RegistrationRejected},
		{rejected.ID, models.RegistrationApproved},
		{rejected.ID, models.RegistrationRejected},
	} {
		_, err := s.wf.Decide(s.ctx, tc.id, tc.decision, s.admin)
		s.True(apperr.Is(err, apperr.KindInvalidTransition), "%s -> %s", tc.id, tc.decision)
	}
	s.Equal(1, s.counter(e.ID))
}

func (s *WorkflowSuite) TestDecideRejectsPendingAsDecision() {
	reg := s.pending(s.event(1).ID)
	_, err := s.wf.Decide(s.ctx, reg.ID, models.RegistrationPending, s.admin)
	s.True(apperr.Is(err, apperr.KindBadRequest))
}

func (s *WorkflowSuite) TestDecideUnknownRegistration() {
	_, err := s.wf.Decide(s.ctx, uuid.New(), models.RegistrationApproved, s.admin)
	s.True(apperr.Is(err, apperr.KindNotFound))
	_, err = s.wf.History(s.ctx, uuid.New())
	s.True(apperr.Is(err, apperr.KindNotFound))
}

func (s *WorkflowSuite) TestApproveAtCapacityKeepsPending() {
	e := s.event(1)
	first := s.pending(e.ID)
	second := s.pending(e.ID)
	_, err := s.wf.Decide(s.ctx, first.ID, models.RegistrationApproved, s.admin)
	s.Require().NoError(err)

	_, err = s.wf.Decide(s.ctx, second.ID, models.RegistrationApproved, s.admin)
	s.True(apperr.Is(err, apperr.KindCapacityExceeded))

	got, err := s.db.Registrations().GetByID(s.ctx, second.ID)
	s.Require().NoError(err)
	s.Equal(models.RegistrationPending, got.Status)
	entries, _ := s.wf.History(s.ctx, second.ID)
	s.Empty(entries)
	s.Equal(1, s.counter(e.ID))
}

func (s *WorkflowSuite) TestConcurrentApprovalsNeverExceedLimit() {
	const limit, pendingCount = 10, 40
	e := s.event(limit)
	ids := make([]uuid.UUID, pendingCount)
	for i := range ids {
		ids[i] = s.pending(e.ID).ID
	}

	var ok, full atomic.Int32
	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			_, err := s.wf.Decide(s.ctx, id, models.RegistrationApproved, s.admin)
			switch {
			case err == nil:
				ok.Add(1)
			case apperr.Is(err, apperr.KindCapacityExceeded):
				full.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	s.Equal(int32(limit), ok.Load())
	s.Equal(int32(pendingCount-limit), full.Load())
	s.Equal(limit, s.counter(e.ID))
	s.Equal(s.counter(e.ID), s.approvedCount(e.ID))
}

func (s *WorkflowSuite) TestConcurrentDecisionsOnOneRegistration() {
	e := s.event(5)
	reg := s.pending(e.ID)

	var ok atomic.Int32
	var g errgroup.Group
	for i := range 20 {
		decision := models.RegistrationApproved
		if i%2 == 1 {
			decision = models.RegistrationRejected
		}
		g.Go(func() error {
			if _, err := s.wf.Decide(s.ctx, reg.ID, decision, s.admin); err == nil {
				ok.Add(1)
			} else if !apperr.Is(err, apperr.KindInvalidTransition) {
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	s.Equal(int32(1), ok.Load())
	s.Equal(s.counter(e.ID), s.approvedCount(e.ID))
	entries, _ := s.wf.History(s.ctx, reg.ID)
	s.Len(entries, 1)
}

func (s *WorkflowSuite) TestFailedAuditRollsBackApproval() {
	e := s.event(2)
	reg := s.pending(e.ID)
	wf := s.newWorkflow(failingAudit{s.db.Audit()}, nil)

	_, err := wf.Decide(s.ctx, reg.ID, models.RegistrationApproved, s.admin)
	s.True(apperr.Is(err, apperr.KindInternal))

	got, _ := s.db.Registrations().GetByID(s.ctx, reg.ID)
	s.Equal(models.RegistrationPending, got.Status)
	s.Equal(0, s.counter(e.ID))
}

func (s *WorkflowSuite) TestRoundTrip() {
	e := s.event(1)
	u, v := s.student(), s.student()

	regU, err := s.regs.Register(s.ctx, e.ID, u)
	s.Require().NoError(err)
	s.Equal(models.RegistrationPending, regU.Status)
	s.Equal(0, s.counter(e.ID))

	regV, err := s.regs.Register(s.ctx, e.ID, v)
	s.Require().NoError(err)

	_, err = s.wf.Decide(s.ctx, regU.ID, models.RegistrationApproved, s.admin)
	s.Require().NoError(err)
	s.Equal(1, s.counter(e.ID))

	_, err = s.wf.Decide(s.ctx, regV.ID, models.RegistrationApproved, s.admin)
	s.True(apperr.Is(err, apperr.KindCapacityExceeded))

	_, err = s.regs.Register(s.ctx, e.ID, u)
	s.True(apperr.Is(err, apperr.KindDuplicateRegistration))
}

func (s *WorkflowSuite) TestReverseFreesSlot() {
	e := s.event(1)
	first := s.pending(e.ID)
	second := s.pending(e.ID)
	_, err := s.wf.Decide(s.ctx, first.ID, models.RegistrationApproved, s.admin)
	s.Require().NoError(err)

	got, err := s.wf.Reverse(s.ctx, first.ID, s.admin)
	s.Require().NoError(err)
	s.Equal(models.RegistrationRejected, got.Status)
	s.Equal(0, s.counter(e.ID))

	entries, err := s.wf.History(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(ReversalAction, entries[1].Action)

	_, err = s.wf.Reverse(s.ctx, first.ID, s.admin)
	s.True(apperr.Is(err, apperr.KindInvalidTransition))

	_, err = s.wf.Decide(s.ctx, second.ID, models.RegistrationApproved, s.admin)
	s.Require().NoError(err)
	s.Equal(1, s.counter(e.ID))
}

func (s *WorkflowSuite) TestReversePendingIsInvalid() {
	reg := s.pending(s.event(1).ID)
	_, err := s.wf.Reverse(s.ctx, reg.ID, s.admin)
	s.True(apperr.Is(err, apperr.KindInvalidTransition))
}

func (s *WorkflowSuite) TestDecisionNotifies() {
	e := s.event(1)
	reg := s.pending(e.ID)
	notifier := mocks.NewMockNotifier(gomock.NewController(s.T()))
	notifier.EXPECT().
		Notify(gomock.Any(), notifications.Notice{
			Type:           models.EmailTypeRegistrationApproved,
			RegistrationID: reg.ID,
			EventID:        e.ID,
			UserID:         reg.UserID,
		}).
		Return(nil)
	dispatch := notifications.NewDispatch(notifier, nil).WithRunner(func(f func()) { f() })

	_, err := s.newWorkflow(s.db.Audit(), dispatch).Decide(s.ctx, reg.ID, models.RegistrationApproved, s.admin)
	s.Require().NoError(err)
}

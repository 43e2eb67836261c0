package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"github.com/campuspass/backend/internal/auth"
	"github.com/campuspass/backend/internal/metrics"
	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/notifications"
	"github.com/campuspass/backend/internal/store/memory"
)

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Code      string          `json:"code"`
	Retryable bool            `json:"retryable"`
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notifications.Notice
}

func (n *recordingNotifier) Notify(_ context.Context, notice notifications.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.notices))
	for _, notice := range n.notices {
		out = append(out, notice.Type)
	}
	return out
}

type RouterSuite struct {
	suite.Suite
	db       *memory.DB
	router   *gin.Engine
	notifier *recordingNotifier
	tokens   map[string]string
	users    map[string]*models.User
}

func TestRouterSuite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.db = memory.New()
	s.notifier = &recordingNotifier{}
	jwtService := auth.NewJWTService("test-secret", "campuspass", time.Hour)
	reg := prometheus.NewRegistry()

	s.router = NewRouter(Deps{
		Backend:  MemoryBackend(s.db),
		Tokens:   jwtService,
		Notifier: s.notifier,
		Dispatch: notifications.NewDispatch(s.notifier, nil).WithRunner(func(f func()) { f() }),
		Metrics:  metrics.New(reg),
		Gatherer: reg,
	})

	s.tokens = map[string]string{}
	s.users = map[string]*models.User{}
	for name, role := range map[string]models.Role{
		"admin": models.RoleAdmin,
		"u":     models.RoleStudent,
		"v":     models.RoleStudent,
	} {
		user := &models.User{Email: name + "@college.edu", FullName: strings.ToUpper(name) + " Student", Role: role}
		s.db.Users().Put(context.Background(), user)
		token, err := jwtService.Generate(models.Principal{UserID: user.ID, Email: user.Email, Role: role})
		s.Require().NoError(err)
		s.tokens[name], s.users[name] = token, user
	}
}

func (s *RouterSuite) do(method, path, who string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if who != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[who])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder, into any) envelope {
	var env envelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if into != nil {
		s.Require().NoError(json.Unmarshal(env.Data, into))
	}
	return env
}

func (s *RouterSuite) createEvent(limit int, start time.Time) uuid.UUID {
	w := s.do(http.MethodPost, "/events", "admin", map[string]any{
		"title":              "Annual Tech Fest",
		"location":           "Main Auditorium",
		"college_name":       "City Institute of Technology",
		"start_date":         start.Format(time.RFC3339),
		"registration_limit": limit,
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var e struct {
		ID uuid.UUID `json:"id"`
	}
	s.decode(w, &e)
	return e.ID
}

func (s *RouterSuite) register(eventID uuid.UUID, who string) (*httptest.ResponseRecorder, models.Registration) {
	w := s.do(http.MethodPost, "/registrations", who, map[string]string{"event_id": eventID.String()})
	var reg models.Registration
	if w.Code == http.StatusCreated {
		s.decode(w, &reg)
	}
	return w, reg
}

func (s *RouterSuite) TestHealthAndMetricsArePublic() {
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)

	s.createEvent(1, time.Now().Add(72*time.Hour))
	w := s.do(http.MethodGet, "/metrics", "", nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestAuthRequired() {
	w := s.do(http.MethodPost, "/registrations", "", map[string]string{"event_id": uuid.NewString()})
	s.Equal(http.StatusUnauthorized, w.Code)
	env := s.decode(w, nil)
	s.Equal("unauthorized", env.Code)

	w = s.do(http.MethodPost, "/events", "u", map[string]any{"title": "x"})
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *RouterSuite) TestRoundTrip() {
	eventID := s.createEvent(1, time.Now().Add(72*time.Hour))

	w, regU := s.register(eventID, "u")
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Equal(models.RegistrationPending, regU.Status)

	w, regV := s.register(eventID, "v")
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w, _ = s.register(eventID, "u")
	s.Equal(http.StatusConflict, w.Code)
	env := s.decode(w, nil)
	s.Equal("duplicate_registration", env.Code)
	s.False(env.Retryable)

	w = s.do(http.MethodPatch, "/registrations/"+regU.ID.String()+"/status", "admin", map[string]string{"status": "approved"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var approved models.Registration
	s.decode(w, &approved)
	s.Equal(models.RegistrationApproved, approved.Status)

	var view struct {
		CurrentRegistrations int  `json:"current_registrations"`
		RegistrationOpen     bool `json:"registration_open"`
	}
	s.decode(s.do(http.MethodGet, "/events/"+eventID.String(), "u", nil), &view)
	s.Equal(1, view.CurrentRegistrations)
	s.False(view.RegistrationOpen)

	w = s.do(http.MethodPatch, "/registrations/"+regV.ID.String()+"/status", "admin", map[string]string{"status": "approved"})
	s.Equal(http.StatusConflict, w.Code)
	env = s.decode(w, nil)
	s.Equal("capacity_exceeded", env.Code)
	s.False(env.Retryable)

	var stillPending models.Registration
	s.decode(s.do(http.MethodGet, "/registrations/"+regV.ID.String(), "v", nil), &stillPending)
	s.Equal(models.RegistrationPending, stillPending.Status)

	w = s.do(http.MethodPatch, "/registrations/"+regU.ID.String()+"/status", "admin", map[string]string{"status": "rejected"})
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("invalid_transition", s.decode(w, nil).Code)

	s.Equal([]string{"registration_received", "registration_received", "registration_approved"}, s.notifier.types())
}

func (s *RouterSuite) TestCredentialsAndVerification() {
	eventID := s.createEvent(5, time.Now().Add(72*time.Hour))
	_, regU := s.register(eventID, "u")
	_, regV := s.register(eventID, "v")
	s.Require().Equal(http.StatusOK,
		s.do(http.MethodPatch, "/registrations/"+regU.ID.String()+"/status", "admin", map[string]string{"status": "approved"}).Code)

	w := s.do(http.MethodGet, "/tickets/"+regU.ID.String(), "u", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("application/pdf", w.Header().Get("Content-Type"))
	s.Contains(w.Header().Get("Content-Disposition"), `attachment; filename="ticket-`+regU.ShortID()+`.pdf"`)
	s.True(bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/certificates/"+regU.ID.String(), "admin", nil).Code)

	w = s.do(http.MethodGet, "/tickets/"+regU.ID.String(), "v", nil)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("forbidden", s.decode(w, nil).Code)

	w = s.do(http.MethodGet, "/certificates/"+regV.ID.String(), "v", nil)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("not_eligible", s.decode(w, nil).Code)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/tickets/"+uuid.NewString(), "admin", nil).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/tickets/not-a-uuid", "admin", nil).Code)

	var res struct {
		Verified bool   `json:"verified"`
		Reason   string `json:"reason"`
		Attendee struct {
			Email string `json:"email"`
		} `json:"attendee"`
	}
	w = s.do(http.MethodGet, "/tickets/verify/"+regU.ID.String(), "admin", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.decode(w, &res)
	s.True(res.Verified)
	s.Equal("u@college.edu", res.Attendee.Email)

	for _, id := range []string{uuid.NewString(), "garbage"} {
		w = s.do(http.MethodGet, "/tickets/verify/"+id, "admin", nil)
		s.Equal(http.StatusOK, w.Code)
		res.Verified, res.Reason = true, ""
		s.decode(w, &res)
		s.False(res.Verified)
		s.Equal("not_found", res.Reason)
	}

	w = s.do(http.MethodPost, "/tickets/verify", "admin", map[string]string{
		"payload": `{"registrationId":"` + regV.ID.String() + `","timestamp":"2026-01-01T00:00:00.000Z","type":"event_ticket"}`,
	})
	s.Equal(http.StatusOK, w.Code)
	s.decode(w, &res)
	s.Equal("not_approved", res.Reason)

	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/tickets/verify/"+regU.ID.String(), "u", nil).Code)
}

func (s *RouterSuite) TestReversalScenario() {
	eventID := s.createEvent(2, time.Now().Add(72*time.Hour))
	_, reg := s.register(eventID, "u")
	s.Require().Equal(http.StatusOK,
		s.do(http.MethodPatch, "/registrations/"+reg.ID.String()+"/status", "admin", map[string]string{"status": "approved"}).Code)

	w := s.do(http.MethodPost, "/registrations/"+reg.ID.String()+"/reverse", "admin", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var view struct {
		CurrentRegistrations int `json:"current_registrations"`
	}
	s.decode(s.do(http.MethodGet, "/events/"+eventID.String(), "admin", nil), &view)
	s.Equal(0, view.CurrentRegistrations)

	w = s.do(http.MethodGet, "/tickets/"+reg.ID.String(), "u", nil)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("not_eligible", s.decode(w, nil).Code)

	var history []models.AuditLogEntry
	s.decode(s.do(http.MethodGet, "/registrations/"+reg.ID.String()+"/audit", "admin", nil), &history)
	s.Len(history, 2)
}

func (s *RouterSuite) TestDeadlineScenario() {
	soon := s.createEvent(5, time.Now().Add(30*time.Minute))
	w, _ := s.register(soon, "u")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("registration_closed", s.decode(w, nil).Code)

	later := s.createEvent(5, time.Now().Add(90*time.Minute))
	w, _ = s.register(later, "u")
	s.Equal(http.StatusCreated, w.Code)
}

func (s *RouterSuite) TestRegistrationListsAndPayment() {
	eventID := s.createEvent(5, time.Now().Add(72*time.Hour))
	_, reg := s.register(eventID, "u")
	s.register(eventID, "v")

	var mine []models.Registration
	s.decode(s.do(http.MethodGet, "/registrations/me", "u", nil), &mine)
	s.Require().Len(mine, 1)
	s.Equal(reg.ID, mine[0].ID)

	var all []models.Registration
	s.decode(s.do(http.MethodGet, "/events/"+eventID.String()+"/registrations", "admin", nil), &all)
	s.Len(all, 2)

	w := s.do(http.MethodPatch, "/registrations/"+reg.ID.String()+"/payment", "admin", map[string]string{"payment_status": "paid"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var paid models.Registration
	s.decode(w, &paid)
	s.Equal(models.PaymentPaid, paid.PaymentStatus)

	s.Equal(http.StatusBadRequest,
		s.do(http.MethodPatch, "/registrations/"+reg.ID.String()+"/payment", "admin", map[string]string{"payment_status": "refunded"}).Code)
}

func (s *RouterSuite) TestResendNotification() {
	eventID := s.createEvent(5, time.Now().Add(72*time.Hour))
	_, reg := s.register(eventID, "u")

	w := s.do(http.MethodPost, "/registrations/"+reg.ID.String()+"/emails/resend", "admin", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal([]string{"registration_received", "registration_received"}, s.notifier.types())

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/registrations/"+reg.ID.String()+"/emails", "admin", nil).Code)
}

func (s *RouterSuite) TestEmptyListsSerializeAsArrays() {
	eventID := s.createEvent(5, time.Now().Add(72*time.Hour))

	expectEmpty := func(path, who string) {
		w := s.do(http.MethodGet, path, who, nil)
		s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
		env := s.decode(w, nil)
		s.JSONEq(`[]`, string(env.Data), path)
	}
	expectEmpty("/registrations/me", "u")
	expectEmpty("/events/"+eventID.String()+"/registrations", "admin")
	expectEmpty("/registrations/"+uuid.NewString()+"/emails", "admin")
}

package events

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuspass/backend/internal/ledger"
	"github.com/campuspass/backend/internal/middleware"
	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/store"
	"github.com/campuspass/backend/pkg/response"
)

// CreateRequest is the body for POST /events. Event management lives in the external
// catalogue; this endpoint only seeds events the registration core can work against.
type CreateRequest struct {
	Title                string     `json:"title" binding:"required"`
	Description          string     `json:"description"`
	Location             string     `json:"location"`
	CollegeName          string     `json:"college_name"`
	StartDate            time.Time  `json:"start_date" binding:"required"`
	EndDate              *time.Time `json:"end_date"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	RegistrationLimit    int        `json:"registration_limit" binding:"required,gt=0"`
}

// View is an event with its derived lifecycle status.
type View struct {
	models.Event
	Status           models.EventStatus `json:"status"`
	RegistrationOpen bool               `json:"registration_open"`
	ClosesAt         time.Time          `json:"registration_closes_at"`
	Remaining        int                `json:"remaining_slots"`
}

// NewView derives the status fields of e at now.
func NewView(e *models.Event, now time.Time) View {
	return View{
		Event:            *e,
		Status:           ledger.DeriveStatus(e, now),
		RegistrationOpen: ledger.IsRegistrationOpen(e, now),
		ClosesAt:         ledger.CloseTime(e),
		Remaining:        e.Remaining(),
	}
}

// Handler handles event HTTP endpoints.
type Handler struct {
	repo   store.EventStore
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(repo store.EventStore, now func() time.Time, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Handler{repo: repo, now: now, logger: logger}
}

// Create handles POST /events (admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.RegistrationDeadline != nil && req.RegistrationDeadline.After(req.StartDate) {
		response.BadRequest(c, "registration_deadline must not be after start_date")
		return
	}
	if req.EndDate != nil && req.EndDate.Before(req.StartDate) {
		response.BadRequest(c, "end_date must not be before start_date")
		return
	}
	principal := middleware.MustPrincipal(c)
	e := &models.Event{
		Title:                strings.TrimSpace(req.Title),
		Description:          req.Description,
		Location:             req.Location,
		CollegeName:          req.CollegeName,
		StartDate:            req.StartDate.UTC(),
		EndDate:              req.EndDate,
		RegistrationDeadline: req.RegistrationDeadline,
		RegistrationLimit:    req.RegistrationLimit,
		Status:               models.EventStatusUpcoming,
		CreatedBy:            principal.UserID,
	}
	if err := h.repo.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event failed", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, NewView(e, h.now()))
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	if err != nil {
		h.logger.Error("get event failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to load event")
		return
	}
	response.OK(c, NewView(e, h.now()))
}

// Cancel handles POST /events/:id/cancel (admin).
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.repo.Cancel(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("cancel event failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to cancel event")
		return
	}
	h.logger.Info("event cancelled", zap.String("event_id", id.String()))
	response.NoContent(c)
}

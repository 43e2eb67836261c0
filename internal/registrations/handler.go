package registrations

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuspass/backend/internal/middleware"
	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/pkg/apperr"
	"github.com/campuspass/backend/pkg/response"
)

// RegisterRequest is the body for POST /registrations.
type RegisterRequest struct {
	EventID string `json:"event_id" binding:"required,uuid"`
}

// PaymentRequest is the body for PATCH /registrations/:id/payment.
type PaymentRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register handles POST /registrations for the calling student.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	eventID, _ := uuid.Parse(req.EventID)
	p := middleware.MustPrincipal(c)

	reg, err := h.svc.Register(c.Request.Context(), eventID, p.UserID)
	if err != nil {
		h.fail(c, err, "register failed", zap.String("event_id", req.EventID))
		return
	}
	response.Created(c, reg)
}

// Get handles GET /registrations/:id (admin or owner).
func (h *Handler) Get(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	reg, err := h.svc.GetFor(c.Request.Context(), middleware.MustPrincipal(c), id)
	if err != nil {
		h.fail(c, err, "get registration failed", zap.String("registration_id", id.String()))
		return
	}
	response.OK(c, reg)
}

// ListMine handles GET /registrations/me.
func (h *Handler) ListMine(c *gin.Context) {
	p := middleware.MustPrincipal(c)
	list, err := h.svc.ListByUser(c.Request.Context(), p.UserID)
	if err != nil {
		h.fail(c, err, "list registrations failed", zap.String("user_id", p.UserID.String()))
		return
	}
	response.OK(c, list)
}

// ListByEvent handles GET /events/:id/registrations (admin).
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, ok := ParamID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		h.fail(c, err, "list event registrations failed", zap.String("event_id", eventID.String()))
		return
	}
	response.OK(c, list)
}

// SetPayment handles PATCH /registrations/:id/payment (admin).
func (h *Handler) SetPayment(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	status, valid := models.ParsePaymentStatus(req.PaymentStatus)
	if !valid {
		response.BadRequest(c, "payment_status must be paid or unpaid")
		return
	}
	reg, err := h.svc.SetPaymentStatus(c.Request.Context(), id, status, middleware.MustPrincipal(c).UserID)
	if err != nil {
		h.fail(c, err, "set payment status failed", zap.String("registration_id", id.String()))
		return
	}
	response.OK(c, reg)
}

func (h *Handler) fail(c *gin.Context, err error, msg string, fields ...zap.Field) {
	if apperr.KindOf(err) == apperr.KindInternal {
		h.logger.Error(msg, append(fields, zap.Error(err))...)
	}
	response.Error(c, err)
}

// ParamID parses a uuid path parameter, writing a 400 when it is malformed.
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

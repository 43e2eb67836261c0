package approval

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campuspass/backend/internal/middleware"
	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/registrations"
	"github.com/campuspass/backend/pkg/apperr"
	"github.com/campuspass/backend/pkg/response"
)

// DecideRequest is the body for PATCH /registrations/:id/status.
type DecideRequest struct {
	Status string `json:"status" binding:"required"`
}

// Handler exposes the workflow to admins.
type Handler struct {
	wf     *Workflow
	logger *zap.Logger
}

// NewHandler creates an approval handler.
func NewHandler(wf *Workflow, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{wf: wf, logger: logger}
}

// Decide handles PATCH /registrations/:id/status.
func (h *Handler) Decide(c *gin.Context) {
	id, ok := registrations.ParamID(c, "id")
	if !ok {
		return
	}
	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	decision, valid := models.ParseRegistrationStatus(req.Status)
	if !valid || decision == models.RegistrationPending {
		response.BadRequest(c, "status must be approved or rejected")
		return
	}
	reg, err := h.wf.Decide(c.Request.Context(), id, decision, middleware.MustPrincipal(c).UserID)
	if err != nil {
		h.fail(c, err, "decide failed", zap.String("registration_id", id.String()))
		return
	}
	response.OK(c, reg)
}

// Reverse handles POST /registrations/:id/reverse.
func (h *Handler) Reverse(c *gin.Context) {
	id, ok := registrations.ParamID(c, "id")
	if !ok {
		return
	}
	reg, err := h.wf.Reverse(c.Request.Context(), id, middleware.MustPrincipal(c).UserID)
	if err != nil {
		h.fail(c, err, "reverse failed", zap.String("registration_id", id.String()))
		return
	}
	response.OK(c, reg)
}

// History handles GET /registrations/:id/audit.
func (h *Handler) History(c *gin.Context) {
	id, ok := registrations.ParamID(c, "id")
	if !ok {
		return
	}
	entries, err := h.wf.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "audit history failed", zap.String("registration_id", id.String()))
		return
	}
	response.OK(c, entries)
}

func (h *Handler) fail(c *gin.Context, err error, msg string, fields ...zap.Field) {
	if apperr.KindOf(err) == apperr.KindInternal {
		h.logger.Error(msg, append(fields, zap.Error(err))...)
	}
	response.Error(c, err)
}

package emaillogs

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/notifications"
	"github.com/campuspass/backend/internal/registrations"
	"github.com/campuspass/backend/internal/store"
	"github.com/campuspass/backend/pkg/response"
)

// Handler handles email log HTTP endpoints (admin).
type Handler struct {
	logs     store.EmailLogStore
	regs     store.RegistrationStore
	notifier notifications.Notifier
	logger   *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(logs store.EmailLogStore, regs store.RegistrationStore, notifier notifications.Notifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logs: logs, regs: regs, notifier: notifier, logger: logger}
}

// ListByRegistration handles GET /registrations/:id/emails.
func (h *Handler) ListByRegistration(c *gin.Context) {
	id, ok := registrations.ParamID(c, "id")
	if !ok {
		return
	}
	logs, err := h.logs.ListByRegistration(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list email logs failed", zap.Error(err), zap.String("registration_id", id.String()))
		response.Internal(c, "failed to load email logs")
		return
	}
	if logs == nil {
		logs = []models.EmailLog{}
	}
	response.OK(c, logs)
}

// Resend handles POST /registrations/:id/emails/resend. It re-queues the notice for the
// registration's current status and waits for the enqueue to finish.
func (h *Handler) Resend(c *gin.Context) {
	id, ok := registrations.ParamID(c, "id")
	if !ok {
		return
	}
	reg, err := h.regs.GetByID(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		response.NotFound(c, "registration not found")
		return
	}
	if err != nil {
		h.logger.Error("load registration failed", zap.Error(err), zap.String("registration_id", id.String()))
		response.Internal(c, "failed to load registration")
		return
	}
	notice := notifications.NoticeFor(reg)
	if err := h.notifier.Notify(c.Request.Context(), notice); err != nil {
		h.logger.Warn("resend enqueue failed", zap.Error(err), zap.String("registration_id", id.String()))
		response.ServiceUnavailable(c, "notification queue unavailable")
		return
	}
	response.OK(c, gin.H{"message": "resend queued", "email_type": notice.Type})
}

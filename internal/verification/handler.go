package verification

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campuspass/backend/pkg/response"
)

// PayloadRequest is the body for POST /tickets/verify.
type PayloadRequest struct {
	Payload string `json:"payload" binding:"required"`
}

// Handler exposes verification to admins at check-in.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a verification handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// VerifyID handles GET /tickets/verify/:registrationId. Unknown or malformed ids
// answer 200 with verified false.
func (h *Handler) VerifyID(c *gin.Context) {
	id := c.Param("registrationId")
	res, err := h.svc.Verify(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("verify failed", zap.String("registration_id", id), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// VerifyPayload handles POST /tickets/verify with the raw scanned QR content.
func (h *Handler) VerifyPayload(c *gin.Context) {
	var req PayloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.VerifyPayload(c.Request.Context(), req.Payload)
	if err != nil {
		h.logger.Error("verify payload failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

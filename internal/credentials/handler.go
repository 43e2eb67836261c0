package credentials

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campuspass/backend/internal/middleware"
	"github.com/campuspass/backend/internal/registrations"
	"github.com/campuspass/backend/pkg/apperr"
	"github.com/campuspass/backend/pkg/response"
)

// Handler streams credentials as PDF attachments.
type Handler struct {
	issuer *Issuer
	logger *zap.Logger
}

// NewHandler creates a credentials handler.
func NewHandler(issuer *Issuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{issuer: issuer, logger: logger}
}

// Ticket handles GET /tickets/:registrationId.
func (h *Handler) Ticket(c *gin.Context) { h.serve(c, KindTicket) }

// Certificate handles GET /certificates/:registrationId.
func (h *Handler) Certificate(c *gin.Context) { h.serve(c, KindCertificate) }

func (h *Handler) serve(c *gin.Context, kind string) {
	id, ok := registrations.ParamID(c, "registrationId")
	if !ok {
		return
	}
	doc, err := h.issuer.IssueFor(c.Request.Context(), middleware.MustPrincipal(c), id, kind)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			h.logger.Error("issue credential failed", zap.Error(err), zap.String("kind", kind), zap.String("registration_id", id.String()))
		}
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	c.Header("Content-Length", strconv.Itoa(len(doc.Content)))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}

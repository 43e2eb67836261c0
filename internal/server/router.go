// Package server assembles the HTTP surface of the registration core.
package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/campuspass/backend/internal/approval"
	"github.com/campuspass/backend/internal/credentials"
	"github.com/campuspass/backend/internal/emaillogs"
	"github.com/campuspass/backend/internal/events"
	"github.com/campuspass/backend/internal/ledger"
	"github.com/campuspass/backend/internal/metrics"
	"github.com/campuspass/backend/internal/middleware"
	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/notifications"
	"github.com/campuspass/backend/internal/registrations"
	"github.com/campuspass/backend/internal/verification"
	"github.com/campuspass/backend/pkg/response"
)

// Deps are the collaborators of the router.
type Deps struct {
	Backend  Backend
	Tokens   middleware.TokenValidator
	Notifier notifications.Notifier
	// Dispatch overrides the default goroutine dispatch over Notifier.
	Dispatch    *notifications.Dispatch
	Renderer    *credentials.Renderer
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	CORSOrigins string
	Now         func() time.Time
	Logger      *zap.Logger
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Notifier == nil {
		d.Notifier = notifications.NewLogNotifier(d.Logger)
	}
	if d.Dispatch == nil {
		d.Dispatch = notifications.NewDispatch(d.Notifier, d.Logger)
	}
	if d.Renderer == nil {
		d.Renderer = credentials.NewRenderer(credentials.RenderOptions{})
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	b := d.Backend

	regSvc := registrations.NewService(registrations.Deps{
		Events:        b.Events,
		Registrations: b.Registrations,
		Audit:         b.Audit,
		Tx:            b.Tx,
	}, d.Dispatch, d.Logger, registrations.WithClock(d.Now), registrations.WithMetrics(d.Metrics))
	workflow := approval.New(approval.Deps{
		Registrations: b.Registrations,
		Audit:         b.Audit,
		Tx:            b.Tx,
		Ledger:        ledger.New(b.Slots, d.Logger),
	}, d.Dispatch, d.Metrics, d.Logger)
	issuer := credentials.NewIssuer(credentials.Stores{
		Registrations: b.Registrations,
		Events:        b.Events,
		Users:         b.Users,
	}, d.Renderer, d.Metrics, d.Logger)
	verifier := verification.NewService(verification.Stores{
		Registrations: b.Registrations,
		Events:        b.Events,
		Users:         b.Users,
	}, d.Metrics, d.Logger)

	eventHandler := events.NewHandler(b.Events, d.Now, d.Logger)
	registrationHandler := registrations.NewHandler(regSvc, d.Logger)
	approvalHandler := approval.NewHandler(workflow, d.Logger)
	credentialHandler := credentials.NewHandler(issuer, d.Logger)
	verificationHandler := verification.NewHandler(verifier, d.Logger)
	emailLogsHandler := emaillogs.NewHandler(b.EmailLogs, b.Registrations, d.Notifier, d.Logger)

	admin := middleware.RequireRole(models.RoleAdmin)
	student := middleware.RequireRole(models.RoleStudent)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(d.CORSOrigins))
	router.Use(middleware.Logger(d.Logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	api := router.Group("")
	api.Use(middleware.JWT(d.Tokens))
	{
		// Events (external CRUD stand-in)
		api.POST("/events", admin, eventHandler.Create)
		api.GET("/events/:id", eventHandler.GetByID)
		api.POST("/events/:id/cancel", admin, eventHandler.Cancel)
		api.GET("/events/:id/registrations", admin, registrationHandler.ListByEvent)

		// Registrations
		api.POST("/registrations", student, registrationHandler.Register)
		api.GET("/registrations/me", registrationHandler.ListMine)
		api.GET("/registrations/:id", registrationHandler.Get)
		api.PATCH("/registrations/:id/payment", admin, registrationHandler.SetPayment)

		// Approval
		api.PATCH("/registrations/:id/status", admin, approvalHandler.Decide)
		api.POST("/registrations/:id/reverse", admin, approvalHandler.Reverse)
		api.GET("/registrations/:id/audit", admin, approvalHandler.History)

		// Email logs
		api.GET("/registrations/:id/emails", admin, emailLogsHandler.ListByRegistration)
		api.POST("/registrations/:id/emails/resend", admin, emailLogsHandler.Resend)

		// Credentials
		api.GET("/tickets/:registrationId", credentialHandler.Ticket)
		api.GET("/certificates/:registrationId", credentialHandler.Certificate)

		// Verification
		api.GET("/tickets/verify/:registrationId", admin, verificationHandler.VerifyID)
		api.POST("/tickets/verify", admin, verificationHandler.VerifyPayload)
	}
	return router
}

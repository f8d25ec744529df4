package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"staysync/internal/infra/config"
	"staysync/internal/infra/obs"
)

type CalendarHTTP interface {
	Availability(c *gin.Context)
	Block(c *gin.Context)
	Unblock(c *gin.Context)
	UpdatePrice(c *gin.Context)
}

type PricingHTTP interface {
	Quote(c *gin.Context)
	Push(c *gin.Context)
}

type SyncAdminHTTP interface {
	ListOutbox(c *gin.Context)
	OutboxStats(c *gin.Context)
	RetryOutbox(c *gin.Context)
	ListConflicts(c *gin.Context)
	ListMappings(c *gin.Context)
	GetMapping(c *gin.Context)
	ListRuns(c *gin.Context)
	RunStats(c *gin.Context)
	TriggerReconciliation(c *gin.Context)
	Connections(c *gin.Context)
	Diagnostics(c *gin.Context)
}

type WebhookHTTP interface {
	Receive(c *gin.Context)
}

type Handlers struct {
	Calendar  CalendarHTTP
	Pricing   PricingHTTP
	SyncAdmin SyncAdminHTTP
	Webhook   WebhookHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, metrics *obs.Metrics, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	api := router.Group("/api/v1")
	org := api.Group("/organizations/:organizationId")
	if h.Calendar != nil {
		org.GET("/properties/:propertyId/calendar", h.Calendar.Availability)
		org.POST("/properties/:propertyId/calendar/block", h.Calendar.Block)
		org.POST("/properties/:propertyId/calendar/unblock", h.Calendar.Unblock)
		org.PUT("/properties/:propertyId/calendar/price", h.Calendar.UpdatePrice)
	}
	if h.Pricing != nil {
		org.GET("/properties/:propertyId/pricing", h.Pricing.Quote)
		org.POST("/properties/:propertyId/pricing/push", h.Pricing.Push)
	}
	if h.SyncAdmin != nil {
		admin := org.Group("/sync")
		admin.GET("/outbox", h.SyncAdmin.ListOutbox)
		admin.GET("/outbox/stats", h.SyncAdmin.OutboxStats)
		admin.POST("/outbox/retry", h.SyncAdmin.RetryOutbox)
		admin.GET("/conflicts", h.SyncAdmin.ListConflicts)
		admin.GET("/mappings", h.SyncAdmin.ListMappings)
		admin.GET("/mappings/:mappingId", h.SyncAdmin.GetMapping)
		admin.GET("/runs", h.SyncAdmin.ListRuns)
		admin.GET("/runs/stats", h.SyncAdmin.RunStats)
		admin.POST("/reconcile", h.SyncAdmin.TriggerReconciliation)
		admin.GET("/connections", h.SyncAdmin.Connections)
		admin.GET("/diagnostics", h.SyncAdmin.Diagnostics)
	}
	if h.Webhook != nil {
		api.POST("/channels/:channel/webhook", h.Webhook.Receive)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}

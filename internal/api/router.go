// Package api wires the HTTP surface: the public inbound webhook, object
// downloads, the websocket endpoint and the key-protected staff API.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/api/handlers"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/api/middleware"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/logger"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/repository"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/storage"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/websocket"
	"gorm.io/gorm"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB          *gorm.DB
	ObjectStore storage.ObjectStore
	Processor   handlers.EmailProcessor
	Sender      handlers.EmailSender
	Hub         *websocket.Hub // optional, /ws is not served without it
	IOTimeout   time.Duration
	Logger      *slog.Logger
	Security    *logger.SecurityLogger

	// Security configuration
	APIKey         string // empty disables authentication
	AllowedOrigins string // comma separated
	AppEnv         string
	RateLimit      float64 // requests per second per IP
	RateBurst      int
}

// NewRouter creates the Echo router. ctx bounds background work such as the
// rate limiter cleanup.
func NewRouter(ctx context.Context, cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	e.Use(middleware.Recover())
	e.Use(middleware.SecureHeaders())
	e.Use(middleware.SecureCORS(cfg.AllowedOrigins, cfg.AppEnv))
	e.Use(middleware.BodyLimit())
	e.Use(middleware.RequestLogger(log))

	ticketRepo := repository.NewTicketRepository(cfg.DB)
	messageRepo := repository.NewMessageRepository(cfg.DB)
	attachmentRepo := repository.NewAttachmentRepository(cfg.DB)
	timeEntryRepo := repository.NewTimeEntryRepository(cfg.DB)

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.ObjectStore)
	webhookHandler := handlers.NewWebhookHandler(cfg.Processor, log, cfg.Security)
	emailHandler := handlers.NewEmailHandler(cfg.Sender, log)
	objectHandler := handlers.NewObjectHandler(cfg.ObjectStore, log, cfg.Security)
	ticketCfg := handlers.TicketHandlerConfig{
		Tickets:     ticketRepo,
		Messages:    messageRepo,
		Attachments: attachmentRepo,
		TimeEntries: timeEntryRepo,
		Objects:     cfg.ObjectStore,
		Sender:      cfg.Sender,
		IOTimeout:   cfg.IOTimeout,
		Logger:      log,
	}
	if cfg.Hub != nil {
		ticketCfg.Notifier = cfg.Hub
	}
	ticketHandler := handlers.NewTicketHandler(ticketCfg)

	// Public routes: health probes, the provider webhook and object downloads
	// are never rate limited or key protected.
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)
	e.POST("/webhooks/inbound-email", webhookHandler.InboundEmail)
	e.POST("/api/inbound-email", webhookHandler.InboundEmail)
	e.GET("/object/public/:bucket/*", objectHandler.Public)

	if cfg.Hub != nil {
		upgrader := websocket.NewSecureUpgrader(cfg.AllowedOrigins, cfg.Security)
		e.GET("/ws", echo.WrapHandler(websocket.NewHandler(cfg.Hub, ticketRepo, upgrader, log)))
	}

	api := e.Group("/api")
	api.Use(middleware.RateLimiterWithConfig(ctx, cfg.RateLimit, cfg.RateBurst, cfg.Security))
	api.Use(middleware.APIKeyAuth(cfg.APIKey, log, cfg.Security))

	api.POST("/send-email", emailHandler.Send)

	tickets := api.Group("/tickets")
	tickets.GET("", ticketHandler.List)
	tickets.GET("/:id", ticketHandler.Get)
	tickets.GET("/:id/messages", ticketHandler.Messages)
	tickets.GET("/:id/attachments", ticketHandler.Attachments)
	tickets.PATCH("/:id/update", ticketHandler.Update)
	tickets.POST("/:id/update", ticketHandler.Update)
	tickets.POST("/:id/mark-read", ticketHandler.MarkRead)
	tickets.POST("/:id/time", ticketHandler.LogTime)
	tickets.POST("/:id/reply", ticketHandler.Reply)
	tickets.POST("/:id/notes", ticketHandler.AddNote)

	return e
}

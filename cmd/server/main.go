package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/api"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/config"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/database"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/inbound"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/logger"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/outbound"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/repository"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/smtp"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/storage"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/websocket"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	sec := logger.NewSecurityLoggerFrom(log)

	log.Info("Starting helpdesk backend")
	cfg.LogConfig(log)

	db, err := database.Connect(cfg.DatabaseURL, database.Options{
		Production: cfg.AppEnv == "production",
		LogLevel:   database.GormLogLevel(cfg.LogLevel),
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	store, err := storage.NewLocalStore(cfg.AttachmentStoragePath, cfg.StoragePublicBaseURL)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	ingestor := inbound.NewAttachmentIngestor(
		store,
		repository.NewAttachmentRepository(db),
		cfg.StorageBucket,
		cfg.IOTimeout,
		log,
	)
	ingestor.SetSecurityLogger(sec)

	processor := inbound.NewProcessor(
		repository.NewCustomerRepository(db),
		repository.NewTicketRepository(db),
		repository.NewMessageRepository(db),
		ingestor,
		cfg.IOTimeout,
		log,
	)
	processor.SetNotifier(hub)

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	dispatcher := outbound.NewDispatcher(provider, cfg.SupportFromAddress, cfg.MessageStream, cfg.IOTimeout, log)
	log.Info("outbound provider configured", slog.String("provider", provider.Name()))

	e := api.NewRouter(ctx, &api.RouterConfig{
		DB:             db,
		ObjectStore:    store,
		Processor:      processor,
		Sender:         dispatcher,
		Hub:            hub,
		IOTimeout:      cfg.IOTimeout,
		Logger:         log,
		Security:       sec,
		APIKey:         cfg.APIKey,
		AllowedOrigins: cfg.AllowedOrigins,
		AppEnv:         cfg.AppEnv,
		RateLimit:      cfg.RateLimitRequests,
		RateBurst:      cfg.RateLimitBurst,
	})

	errCh := make(chan error, 2)

	go func() {
		addr := ":" + strconv.Itoa(cfg.APIPort)
		log.Info("HTTP server listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var smtpServer *gosmtp.Server
	if cfg.SMTPIngestEnabled {
		backend := smtp.NewBackend(&smtp.BackendConfig{
			Processor:        processor,
			InboundAddresses: cfg.InboundAddresses,
			Logger:           log,
		})
		server := smtp.NewSecureServer(backend, smtp.LoadServerConfigFromEnv(cfg.SMTPPort))
		smtpServer = server

		go func() {
			log.Info("SMTP ingest listening", slog.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, gosmtp.ErrServerClosed) {
				errCh <- fmt.Errorf("smtp server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-errCh:
		stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", slog.Any("error", err))
	}
	if smtpServer != nil {
		if err := smtpServer.Close(); err != nil {
			log.Error("SMTP shutdown failed", slog.Any("error", err))
		}
	}

	log.Info("Server stopped")
	return nil
}

func newProvider(cfg *config.Config) (outbound.Provider, error) {
	switch cfg.EmailProvider {
	case config.ProviderPostmark:
		return outbound.NewPostmarkProvider(cfg.PostmarkAPIURL, cfg.PostmarkServerToken, nil), nil
	case config.ProviderSMTP:
		return outbound.NewSMTPProvider(cfg.OutboundSMTPAddr, cfg.OutboundSMTPUsername, cfg.OutboundSMTPPassword), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.EmailProvider)
	}
}

package main

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alumicraft/mailroom"
	"github.com/alumicraft/mailroom/delivery"
	"github.com/alumicraft/mailroom/dispatch"
	"github.com/alumicraft/mailroom/erpnext"
	"github.com/alumicraft/mailroom/postgres"
	"github.com/alumicraft/mailroom/resend"
)

// Services holds all application services.
type Services struct {
	DispatchService      mailroom.DispatchService
	DeliveryTracker      mailroom.DeliveryTracker
	CommunicationService mailroom.CommunicationService
	SettingsService      mailroom.SettingsService
}

// initServices initializes all application services.
func initServices(pool *pgxpool.Pool, cfg *Config, logger *slog.Logger) *Services {
	// Database-backed stores
	db := postgres.NewDB(pool)
	logger.Info("database services initialized")

	// Host business system client: document store, PDF printing, and the
	// native-mailer fallback all go through the same REST client.
	host := erpnext.NewClient(cfg.ERPNextURL, cfg.ERPNextAPIKey, cfg.ERPNextAPISecret)
	logger.Info("host system client initialized", slog.String("url", cfg.ERPNextURL))

	// Provider transport
	transport := resend.NewClient()

	dispatchService := dispatch.NewService(
		db.SettingsService,
		host,
		db.CommunicationService,
		transport,
		host,
		host,
		logger,
	)
	tracker := delivery.NewTracker(db.CommunicationService, logger)

	return &Services{
		DispatchService:      dispatchService,
		DeliveryTracker:      tracker,
		CommunicationService: db.CommunicationService,
		SettingsService:      db.SettingsService,
	}
}

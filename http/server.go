package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/alumicraft/mailroom"
)

// Server represents the HTTP server with all its dependencies.
type Server struct {
	echo   *echo.Echo
	ln     net.Listener
	logger *slog.Logger

	// Configuration
	Addr string

	// APIToken guards the dispatch API when set. The webhook route is
	// always open; it carries its own signature verification.
	APIToken string

	// Domain services
	dispatchService      mailroom.DispatchService
	deliveryTracker      mailroom.DeliveryTracker
	communicationService mailroom.CommunicationService
	settingsService      mailroom.SettingsService
}

// Config holds the configuration for creating a new Server.
type Config struct {
	Addr     string
	APIToken string
	Logger   *slog.Logger

	// Domain services
	DispatchService      mailroom.DispatchService
	DeliveryTracker      mailroom.DeliveryTracker
	CommunicationService mailroom.CommunicationService
	SettingsService      mailroom.SettingsService
}

// NewServer creates a new HTTP server with the given configuration.
func NewServer(cfg Config) *Server {
	s := &Server{
		Addr:                 cfg.Addr,
		APIToken:             cfg.APIToken,
		logger:               cfg.Logger,
		dispatchService:      cfg.DispatchService,
		deliveryTracker:      cfg.DeliveryTracker,
		communicationService: cfg.CommunicationService,
		settingsService:      cfg.SettingsService,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true

	// Register middleware and routes
	s.registerMiddleware()
	s.registerRoutes()

	return s
}

// Echo returns the underlying Echo instance.
// Use sparingly - prefer registering routes through Server methods.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Open starts the HTTP server.
func (s *Server) Open() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		if err := s.echo.Server.Serve(s.ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("server started", slog.String("addr", s.Addr))
	return nil
}

// Close gracefully shuts down the HTTP server.
func (s *Server) Close(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// URL returns the URL of the server.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}

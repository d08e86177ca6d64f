package http

// registerRoutes sets up all routes for the server.
// All routes are defined in this single file for easy navigation.
func (s *Server) registerRoutes() {
	// Health check routes (public)
	s.echo.GET("/health", s.handleHealthCheck)
	s.echo.GET("/health/live", s.handleLivenessCheck)
	s.echo.GET("/health/ready", s.handleReadinessCheck)

	// Provider webhook (public, signature-verified)
	s.echo.POST("/webhooks/resend", s.handleResendWebhook)

	// Dispatch API (token-guarded when a token is configured)
	api := s.echo.Group("/api/emails")
	api.Use(s.RequireAPIToken())

	api.POST("/send", s.handleSendDocumentEmail)
	api.POST("/intercept", s.handleIntercept)
	api.GET("/status", s.handleStatus)
	api.POST("/test", s.handleSendTestEmail)
	api.POST("/test-connection", s.handleTestConnection)
	api.GET("/recipient/:doctype/:name", s.handleResolveRecipient)
	api.GET("/party-email", s.handlePartyEmail)
	api.GET("/logs/:doctype/:name", s.handleListLogs)

	// Per-document-type convenience endpoints
	api.POST("/sales-invoice/:name", s.sendDoctype("Sales Invoice"))
	api.POST("/quotation/:name", s.sendDoctype("Quotation"))
	api.POST("/sales-order/:name", s.sendDoctype("Sales Order"))
	api.POST("/payment-request/:name", s.sendDoctype("Payment Request"))
}

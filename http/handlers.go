package http

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/alumicraft/mailroom"
)

// withTimeout creates a context with a timeout for handler operations.
func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), DefaultTimeout)
}

// requireParam extracts a required route parameter, returning error if empty.
func requireParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if value == "" {
		return "", mailroom.Invalid("%s is required", name)
	}
	return value, nil
}

// bind binds the request body to a struct.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return mailroom.Invalid("Invalid request body")
	}
	return nil
}

// Health handlers
func (s *Server) handleHealthCheck(c echo.Context) error {
	return RespondOK(c, map[string]string{"status": "ok"})
}

func (s *Server) handleLivenessCheck(c echo.Context) error {
	return RespondOK(c, map[string]string{"status": "alive"})
}

func (s *Server) handleReadinessCheck(c echo.Context) error {
	return RespondOK(c, map[string]string{"status": "ready"})
}

// handleSendDocumentEmail runs the dispatch pipeline for one document.
func (s *Server) handleSendDocumentEmail(c echo.Context) error {
	var req mailroom.DispatchRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	result, err := s.dispatchService.SendDocumentEmail(ctx, &req)
	if err != nil {
		return err
	}
	return RespondOK(c, result)
}

// sendDoctype returns a handler that dispatches email for a fixed document
// type, with the document id taken from the route.
func (s *Server) sendDoctype(doctype string) echo.HandlerFunc {
	return func(c echo.Context) error {
		name, err := requireParam(c, "name")
		if err != nil {
			return err
		}

		var body struct {
			ToEmail       string   `json:"to_email"`
			CC            []string `json:"cc"`
			BCC           []string `json:"bcc"`
			CustomMessage string   `json:"custom_message"`
		}
		// Body is optional on the per-type endpoints.
		_ = c.Bind(&body)

		ctx, cancel := withTimeout(c)
		defer cancel()

		result, err := s.dispatchService.SendDocumentEmail(ctx, &mailroom.DispatchRequest{
			Doctype:       doctype,
			DocumentID:    name,
			OverrideTo:    body.ToEmail,
			CC:            body.CC,
			BCC:           body.BCC,
			CustomMessage: body.CustomMessage,
		})
		if err != nil {
			return err
		}
		return RespondOK(c, result)
	}
}

// handleIntercept is the host's pre-send hook.
func (s *Server) handleIntercept(c echo.Context) error {
	var ev mailroom.InterceptEvent
	if err := bind(c, &ev); err != nil {
		return err
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	decision, err := s.dispatchService.Intercept(ctx, &ev)
	if err != nil {
		return err
	}
	return RespondOK(c, decision)
}

// handleStatus reports the service configuration state.
func (s *Server) handleStatus(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	status, err := s.dispatchService.Status(ctx)
	if err != nil {
		return err
	}
	return RespondOK(c, status)
}

// handleSendTestEmail sends the fixed verification message.
func (s *Server) handleSendTestEmail(c echo.Context) error {
	var body struct {
		To string `json:"to"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	result, err := s.dispatchService.SendTestEmail(ctx, body.To)
	if err != nil {
		return err
	}
	return RespondOK(c, result)
}

// handleTestConnection probes the provider API.
func (s *Server) handleTestConnection(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := s.dispatchService.TestConnection(ctx); err != nil {
		return err
	}
	return RespondSuccess(c, "Provider connection verified")
}

// handleResolveRecipient previews the recipient a dispatch would use.
func (s *Server) handleResolveRecipient(c echo.Context) error {
	doctype, err := requireParam(c, "doctype")
	if err != nil {
		return err
	}
	name, err := requireParam(c, "name")
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	recipient, err := s.dispatchService.ResolveRecipient(ctx, doctype, name)
	if err != nil {
		return err
	}
	return RespondOK(c, map[string]string{"recipient": recipient})
}

// handlePartyEmail looks up the primary email for a party record.
func (s *Server) handlePartyEmail(c echo.Context) error {
	doctype := c.QueryParam("doctype")
	party := c.QueryParam("party")

	ctx, cancel := withTimeout(c)
	defer cancel()

	email, err := s.dispatchService.PartyEmail(ctx, doctype, party)
	if err != nil {
		return err
	}
	return RespondOK(c, map[string]string{"email": email})
}

// handleListLogs lists communication logs for one document.
func (s *Server) handleListLogs(c echo.Context) error {
	doctype, err := requireParam(c, "doctype")
	if err != nil {
		return err
	}
	name, err := requireParam(c, "name")
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	logs, err := s.communicationService.FindLogsByReference(ctx, doctype, name)
	if err != nil {
		return err
	}
	return RespondOK(c, map[string]any{"data": logs, "total": len(logs)})
}


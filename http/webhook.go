package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/alumicraft/mailroom"
)

// maxWebhookBody caps the accepted webhook payload size.
const maxWebhookBody = 1 << 20

// handleResendWebhook receives provider delivery events. Processing
// outcomes are always acknowledged with HTTP 200 and an in-body status so
// the provider never retry-storms a bad event; only a failed signature
// check is rejected.
func (s *Server) handleResendWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return RespondOK(c, mailroom.WebhookResult{Status: "error", Message: "unreadable body"})
	}

	secret := s.webhookSecret(c)
	if secret != "" {
		if err := verifyWebhookSignature(c.Request().Header, body, secret); err != nil {
			s.getRequestLogger(c).Warn("webhook signature verification failed",
				slog.String("error", err.Error()))
			return c.JSON(http.StatusUnauthorized, mailroom.WebhookResult{
				Status:  "error",
				Message: "invalid signature",
			})
		}
	}

	var ev mailroom.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return RespondOK(c, mailroom.WebhookResult{Status: "error", Message: "invalid payload"})
	}

	result := s.deliveryTracker.HandleEvent(c.Request().Context(), &ev)
	return RespondOK(c, result)
}

// webhookSecret loads the configured signing secret. A load failure means
// no verification rather than a rejected event.
func (s *Server) webhookSecret(c echo.Context) string {
	settings, err := s.settingsService.Load(c.Request().Context())
	if err != nil {
		s.getRequestLogger(c).Error("webhook settings load failed",
			slog.String("error", err.Error()))
		return ""
	}
	return settings.WebhookSecret
}

// verifyWebhookSignature checks the svix-style signature headers: the
// signed content is "{id}.{timestamp}.{body}" and the signature header
// carries space-separated "v1,<base64>" entries, any of which may match.
func verifyWebhookSignature(header http.Header, body []byte, secret string) error {
	id := header.Get("svix-id")
	timestamp := header.Get("svix-timestamp")
	signatures := header.Get("svix-signature")
	if id == "" || timestamp == "" || signatures == "" {
		return mailroom.Unauthorized("missing signature headers")
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return mailroom.Unauthorized("malformed signing secret")
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, entry := range strings.Fields(signatures) {
		parts := strings.SplitN(entry, ",", 2)
		if len(parts) != 2 || parts[0] != "v1" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(expected)) == 1 {
			return nil
		}
	}
	return mailroom.Unauthorized("no matching signature")
}

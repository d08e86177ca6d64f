package http_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumicraft/mailroom"
	mailroomhttp "github.com/alumicraft/mailroom/http"
	"github.com/alumicraft/mailroom/mock"
)

type serverFixture struct {
	server   *mailroomhttp.Server
	dispatch *mock.DispatchService
	tracker  *mock.DeliveryTracker
	comms    *mock.CommunicationService
	settings *mock.SettingsService
}

func newServerFixture(apiToken string) *serverFixture {
	f := &serverFixture{
		dispatch: &mock.DispatchService{},
		tracker:  &mock.DeliveryTracker{},
		comms:    &mock.CommunicationService{},
		settings: &mock.SettingsService{},
	}
	f.server = mailroomhttp.NewServer(mailroomhttp.Config{
		Addr:                 "localhost:0",
		APIToken:             apiToken,
		Logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
		DispatchService:      f.dispatch,
		DeliveryTracker:      f.tracker,
		CommunicationService: f.comms,
		SettingsService:      f.settings,
	})
	return f
}

func (f *serverFixture) do(method, path string, body string, header map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	f := newServerFixture("")
	rec := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSendDocumentEmailEndpoint(t *testing.T) {
	f := newServerFixture("")
	f.dispatch.SendDocumentEmailFn = func(ctx context.Context, req *mailroom.DispatchRequest) (*mailroom.DispatchResult, error) {
		return &mailroom.DispatchResult{Success: true, MessageID: "msg_123", Recipient: req.OverrideTo}, nil
	}

	rec := f.do(http.MethodPost, "/api/emails/send",
		`{"doctype":"Sales Invoice","document_id":"INV-0001","to_email":"a@b.example"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result mailroom.DispatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "msg_123", result.MessageID)

	require.Len(t, f.dispatch.Requests, 1)
	assert.Equal(t, "Sales Invoice", f.dispatch.Requests[0].Doctype)
	assert.Equal(t, "INV-0001", f.dispatch.Requests[0].DocumentID)
	// The skip flag is never bindable from the outside.
	assert.False(t, f.dispatch.Requests[0].SkipCommunication)
}

func TestSendDocumentEmailEndpoint_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{mailroom.Precondition("not submitted"), http.StatusPreconditionFailed},
		{mailroom.NoRecipient("no address"), http.StatusUnprocessableEntity},
		{mailroom.Configuration("disabled"), http.StatusBadRequest},
		{mailroom.NotFound("missing"), http.StatusNotFound},
		{mailroom.Forbidden("denied"), http.StatusForbidden},
		{mailroom.Provider(mailroom.ReasonRejected, "rejected", nil), http.StatusBadGateway},
	}
	for _, tt := range tests {
		f := newServerFixture("")
		f.dispatch.SendDocumentEmailFn = func(ctx context.Context, req *mailroom.DispatchRequest) (*mailroom.DispatchResult, error) {
			return nil, tt.err
		}
		rec := f.do(http.MethodPost, "/api/emails/send",
			`{"doctype":"Sales Invoice","document_id":"INV-0001"}`, nil)
		assert.Equal(t, tt.status, rec.Code, "error %v", tt.err)

		var body mailroomhttp.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, mailroom.ErrorCode(tt.err), body.Error)
	}
}

func TestDoctypeEndpointsSetDoctype(t *testing.T) {
	f := newServerFixture("")

	rec := f.do(http.MethodPost, "/api/emails/sales-invoice/INV-0001", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(http.MethodPost, "/api/emails/quotation/QTN-0007", `{"custom_message":"hi"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.dispatch.Requests, 2)
	assert.Equal(t, "Sales Invoice", f.dispatch.Requests[0].Doctype)
	assert.Equal(t, "INV-0001", f.dispatch.Requests[0].DocumentID)
	assert.Equal(t, "Quotation", f.dispatch.Requests[1].Doctype)
	assert.Equal(t, "hi", f.dispatch.Requests[1].CustomMessage)
}

func TestInterceptEndpoint(t *testing.T) {
	f := newServerFixture("")
	f.dispatch.InterceptFn = func(ctx context.Context, ev *mailroom.InterceptEvent) (*mailroom.InterceptDecision, error) {
		return &mailroom.InterceptDecision{Handled: true, Result: &mailroom.DispatchResult{Success: true}}, nil
	}

	rec := f.do(http.MethodPost, "/api/emails/intercept",
		`{"doctype":"Sales Invoice","name":"INV-0001","send_email":true,"sent_or_received":"Sent"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var decision mailroom.InterceptDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.True(t, decision.Handled)
}

func TestAPITokenGuard(t *testing.T) {
	f := newServerFixture("secret-token")

	rec := f.do(http.MethodGet, "/api/emails/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/emails/status", "", map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/emails/status", "", map[string]string{"X-API-Key": "secret-token"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health and webhook stay open.
	rec = f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResolveRecipientEndpoint(t *testing.T) {
	f := newServerFixture("")
	f.dispatch.ResolveRecipientFn = func(ctx context.Context, doctype, name string) (string, error) {
		return "billing@acme.example", nil
	}

	rec := f.do(http.MethodGet, "/api/emails/recipient/Sales%20Invoice/INV-0001", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "billing@acme.example")
}

func TestListLogsEndpoint(t *testing.T) {
	f := newServerFixture("")
	require.NoError(t, f.comms.CreateLog(context.Background(), &mailroom.CommunicationLog{
		ReferenceDoctype: "Sales Invoice",
		ReferenceName:    "INV-0001",
		Recipient:        "billing@acme.example",
		Status:           mailroom.CommunicationSent,
	}))

	rec := f.do(http.MethodGet, "/api/emails/logs/Sales%20Invoice/INV-0001", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "billing@acme.example")
}

func TestWebhookEndpoint_NoSecretConfigured(t *testing.T) {
	f := newServerFixture("")
	body := `{"type":"email.delivered","data":{"email_id":"msg_123"}}`

	rec := f.do(http.MethodPost, "/webhooks/resend", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	require.Len(t, f.tracker.Events, 1)
	assert.Equal(t, mailroom.EventDelivered, f.tracker.Events[0].Type)
	assert.Equal(t, "msg_123", f.tracker.Events[0].Data.EmailID)
}

func TestWebhookEndpoint_InvalidPayloadStillAcknowledged(t *testing.T) {
	f := newServerFixture("")
	rec := f.do(http.MethodPost, "/webhooks/resend", "not-json{", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid payload")
	assert.Empty(t, f.tracker.Events)
}

func TestWebhookEndpoint_TrackerErrorStillHTTP200(t *testing.T) {
	f := newServerFixture("")
	f.tracker.HandleEventFn = func(ctx context.Context, ev *mailroom.WebhookEvent) *mailroom.WebhookResult {
		return &mailroom.WebhookResult{Status: "error", Message: "store down"}
	}

	rec := f.do(http.MethodPost, "/webhooks/resend",
		`{"type":"email.delivered","data":{"email_id":"msg_123"}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "store down")
}

// signWebhook computes the svix-style signature over "{id}.{timestamp}.{body}".
func signWebhook(t *testing.T, secret, id, timestamp, body string) string {
	t.Helper()
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	require.NoError(t, err)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id + "." + timestamp + "." + body))
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWebhookEndpoint_ValidSignature(t *testing.T) {
	secret := "whsec_" + base64.StdEncoding.EncodeToString([]byte("test-signing-key"))
	f := newServerFixture("")
	f.settings.Settings = &mailroom.Settings{
		WebhookSecret:  secret,
		DoctypeConfigs: map[string]*mailroom.DoctypeConfig{},
	}

	body := `{"type":"email.opened","data":{"email_id":"msg_123"}}`
	rec := f.do(http.MethodPost, "/webhooks/resend", body, map[string]string{
		"svix-id":        "msg_evt_1",
		"svix-timestamp": "1756600000",
		"svix-signature": signWebhook(t, secret, "msg_evt_1", "1756600000", body),
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.tracker.Events, 1)
	assert.Equal(t, mailroom.EventOpened, f.tracker.Events[0].Type)
}

func TestWebhookEndpoint_InvalidSignatureRejected(t *testing.T) {
	secret := "whsec_" + base64.StdEncoding.EncodeToString([]byte("test-signing-key"))
	f := newServerFixture("")
	f.settings.Settings = &mailroom.Settings{
		WebhookSecret:  secret,
		DoctypeConfigs: map[string]*mailroom.DoctypeConfig{},
	}

	body := `{"type":"email.opened","data":{"email_id":"msg_123"}}`

	// Tampered body no longer matches the signature.
	sig := signWebhook(t, secret, "msg_evt_1", "1756600000", body)
	rec := f.do(http.MethodPost, "/webhooks/resend", body+" ", map[string]string{
		"svix-id":        "msg_evt_1",
		"svix-timestamp": "1756600000",
		"svix-signature": sig,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Missing headers entirely.
	rec = f.do(http.MethodPost, "/webhooks/resend", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Empty(t, f.tracker.Events)
}

package mailroom

import "context"

// DispatchRequest is one logical "send email for this document" request.
// Constructed per call, never persisted.
type DispatchRequest struct {
	Doctype       string   `json:"doctype"`
	DocumentID    string   `json:"document_id"`
	OverrideTo    string   `json:"to_email,omitempty"`
	CC            []string `json:"cc,omitempty"`
	BCC           []string `json:"bcc,omitempty"`
	CustomMessage string   `json:"custom_message,omitempty"`

	// SkipCommunication suppresses the log write (the caller will create
	// its own log row). It never suppresses the at-most-once guarantee.
	SkipCommunication bool `json:"-"`
}

// DispatchResult is the structured outcome returned to every caller.
type DispatchResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	MessageID string `json:"message_id,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
}

// TemplateData is the flat field-to-value mapping handed to the template
// renderer. Built fresh per dispatch and discarded after the send.
type TemplateData map[string]any

// Str returns the named entry as a string, or "" when absent.
func (t TemplateData) Str(key string) string {
	if v, ok := t[key].(string); ok {
		return v
	}
	return ""
}

// InterceptEvent is the host system's outbound-communication event, handed
// to the interception hook before the host's own native send path runs.
type InterceptEvent struct {
	Doctype        string   `json:"doctype"`
	DocumentName   string   `json:"name"`
	Recipients     []string `json:"recipients,omitempty"`
	CC             []string `json:"cc,omitempty"`
	BCC            []string `json:"bcc,omitempty"`
	Subject        string   `json:"subject,omitempty"`
	Content        string   `json:"content,omitempty"`
	SendEmail      bool     `json:"send_email"`
	SentOrReceived string   `json:"sent_or_received"`
	Medium         string   `json:"communication_medium"`
}

// InterceptDecision tells the host whether the event was handled here.
// Handled means the host must skip its native send for this event;
// fallthrough means the host proceeds unmodified.
type InterceptDecision struct {
	Handled bool            `json:"handled"`
	Result  *DispatchResult `json:"result,omitempty"`
}

// ServiceStatus is the status query surface.
type ServiceStatus struct {
	Enabled             bool            `json:"enabled"`
	Configured          bool            `json:"configured"`
	SenderEmail         string          `json:"sender_email"`
	TemplatesConfigured map[string]bool `json:"templates_configured"`
	ConfiguredDoctypes  []string        `json:"configured_doctypes"`
}

// DispatchService is the dispatch pipeline's public call surface.
type DispatchService interface {
	// SendDocumentEmail runs the full pipeline for one document.
	SendDocumentEmail(ctx context.Context, req *DispatchRequest) (*DispatchResult, error)

	// Intercept is the hook the host calls before its native send path.
	Intercept(ctx context.Context, ev *InterceptEvent) (*InterceptDecision, error)

	// ResolveRecipient previews the recipient address for a document.
	ResolveRecipient(ctx context.Context, doctype, name string) (string, error)

	// PartyEmail looks up the primary email for a party record.
	PartyEmail(ctx context.Context, doctype, party string) (string, error)

	// Status reports the service configuration state.
	Status(ctx context.Context) (*ServiceStatus, error)

	// SendTestEmail sends a fixed test message to verify configuration.
	SendTestEmail(ctx context.Context, to string) (*DispatchResult, error)

	// TestConnection probes the provider API.
	TestConnection(ctx context.Context) error
}

// Webhook event types sent by the provider.
const (
	EventSent       = "email.sent"
	EventDelivered  = "email.delivered"
	EventOpened     = "email.opened"
	EventClicked    = "email.clicked"
	EventBounced    = "email.bounced"
	EventComplained = "email.complained"
)

// WebhookBounce carries the bounce detail of a bounced event.
type WebhookBounce struct {
	Message string `json:"message"`
}

// WebhookEventData is the data envelope of one provider webhook event.
type WebhookEventData struct {
	EmailID   string        `json:"email_id"`
	CreatedAt string        `json:"created_at,omitempty"`
	Bounce    WebhookBounce `json:"bounce,omitempty"`
}

// WebhookEvent is one inbound provider event. Transient; it triggers a
// lookup-then-mutate on the communication log and is never persisted.
type WebhookEvent struct {
	Type string           `json:"type"`
	Data WebhookEventData `json:"data"`
}

// WebhookResult is the in-body acknowledgment returned to the provider.
// Errors are reported here, not via HTTP status, to avoid retry storms.
type WebhookResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// DeliveryTracker consumes provider webhook events and advances the
// delivery-status state machine on the communication log.
type DeliveryTracker interface {
	HandleEvent(ctx context.Context, ev *WebhookEvent) *WebhookResult
}

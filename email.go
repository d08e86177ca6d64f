package mailroom

import "context"

// Attachment is one file attached to an outbound email, content base64
// encoded per the provider wire format.
type Attachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Tag is a provenance tag attached to an outbound email for tracking.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OutboundEmail is one fully built message handed to the transport client.
type OutboundEmail struct {
	From        string
	To          []string
	CC          []string
	BCC         []string
	ReplyTo     string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
	Tags        []Tag
}

// SendOutcome is the transport client's classification of one send attempt.
type SendOutcome struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TransportClient performs exactly one outbound provider request per call.
// It is stateless; credentials come from the request-scoped settings
// snapshot. A non-nil error is always an EPROVIDER domain error carrying a
// rejected, timeout or transport reason. No retries happen at this layer.
type TransportClient interface {
	Send(ctx context.Context, apiKey string, email *OutboundEmail) (*SendOutcome, error)

	// TestConnection probes the provider API with the given credentials.
	TestConnection(ctx context.Context, apiKey string) error
}

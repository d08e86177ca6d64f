package mailroom

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CommunicationStatus is the immediate outcome of one dispatch attempt.
type CommunicationStatus string

const (
	CommunicationSent  CommunicationStatus = "Sent"
	CommunicationError CommunicationStatus = "Error"
)

// DeliveryStatus tracks the provider-reported lifecycle of a sent email.
// Ordering: Sent -> Delivered -> {Opened, Clicked}. Bounced and Complained
// are terminal.
type DeliveryStatus string

const (
	DeliverySent       DeliveryStatus = "Sent"
	DeliveryDelivered  DeliveryStatus = "Delivered"
	DeliveryOpened     DeliveryStatus = "Opened"
	DeliveryClicked    DeliveryStatus = "Clicked"
	DeliveryBounced    DeliveryStatus = "Bounced"
	DeliveryComplained DeliveryStatus = "Complained"
)

// CommunicationLog is the persisted record of one dispatch attempt and its
// evolving delivery status. Rows are created by the dispatcher and mutated
// only by the delivery tracker; no other writer touches message_id or
// delivery_status once set.
type CommunicationLog struct {
	ID                uuid.UUID           `json:"id"`
	ReferenceDoctype  string              `json:"reference_doctype"`
	ReferenceName     string              `json:"reference_name"`
	Sender            string              `json:"sender"`
	Recipient         string              `json:"recipient"`
	CC                string              `json:"cc,omitempty"`
	BCC               string              `json:"bcc,omitempty"`
	Subject           string              `json:"subject"`
	Content           string              `json:"content"`
	MessageID         string              `json:"message_id,omitempty"`
	Status            CommunicationStatus `json:"status"`
	DeliveryStatus    DeliveryStatus      `json:"delivery_status,omitempty"`
	ReadByRecipient   bool                `json:"read_by_recipient"`
	ReadByRecipientOn *time.Time          `json:"read_by_recipient_on,omitempty"`
	ErrorMessage      string              `json:"error_message,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// CommunicationService persists and mutates communication log rows.
type CommunicationService interface {
	// CreateLog inserts a new log row, assigning ID and timestamps.
	CreateLog(ctx context.Context, log *CommunicationLog) error

	// FindLogByMessageID locates a row by exact message id, falling back to
	// a substring match for providers that wrap ids in delimiters.
	// Returns ENOTFOUND when no row matches.
	FindLogByMessageID(ctx context.Context, messageID string) (*CommunicationLog, error)

	// FindLogsByReference lists log rows for one document, newest first.
	FindLogsByReference(ctx context.Context, doctype, name string) ([]*CommunicationLog, error)

	// UpdateDeliveryStatus sets the delivery status of a row.
	UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, status DeliveryStatus) error

	// MarkRead sets the read flag and timestamp on a row.
	MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error

	// AddComment appends a human-readable comment to a row.
	AddComment(ctx context.Context, id uuid.UUID, comment string) error
}

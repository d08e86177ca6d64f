// Package delivery consumes provider webhook events and advances the
// delivery-status state machine on communication log rows.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alumicraft/mailroom"
)

// Ensure tracker implements interface.
var _ mailroom.DeliveryTracker = (*Tracker)(nil)

// eventStatus maps provider event types to delivery statuses.
var eventStatus = map[string]mailroom.DeliveryStatus{
	mailroom.EventSent:       mailroom.DeliverySent,
	mailroom.EventDelivered:  mailroom.DeliveryDelivered,
	mailroom.EventOpened:     mailroom.DeliveryOpened,
	mailroom.EventClicked:    mailroom.DeliveryClicked,
	mailroom.EventBounced:    mailroom.DeliveryBounced,
	mailroom.EventComplained: mailroom.DeliveryComplained,
}

// statusRank orders the delivery lifecycle so that late or replayed events
// never regress a row. Bounced and Complained are terminal.
var statusRank = map[mailroom.DeliveryStatus]int{
	mailroom.DeliverySent:       1,
	mailroom.DeliveryDelivered:  2,
	mailroom.DeliveryOpened:     3,
	mailroom.DeliveryClicked:    3,
	mailroom.DeliveryBounced:    4,
	mailroom.DeliveryComplained: 4,
}

// Tracker is the webhook event consumer. Event handling is idempotent:
// replaying any event sequence leaves the log row in the same state.
type Tracker struct {
	comms  mailroom.CommunicationService
	logger *slog.Logger

	now func() time.Time
}

// NewTracker creates a delivery tracker over the communication store.
func NewTracker(comms mailroom.CommunicationService, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		comms:  comms,
		logger: logger,
		now:    time.Now,
	}
}

// HandleEvent processes one provider event. It never signals failure via
// transport semantics; unknown event types and unmatched message ids are
// acknowledged "ok" as no-ops so the provider does not retry them forever.
// The result status is always "ok" or "error".
func (t *Tracker) HandleEvent(ctx context.Context, ev *mailroom.WebhookEvent) *mailroom.WebhookResult {
	if ev == nil || ev.Type == "" {
		return &mailroom.WebhookResult{Status: "ok", Message: "empty event"}
	}

	status, known := eventStatus[ev.Type]
	if !known {
		t.logger.Info("ignoring unknown webhook event type", "type", ev.Type)
		return &mailroom.WebhookResult{Status: "ok", Message: fmt.Sprintf("unhandled event type %s", ev.Type)}
	}
	if ev.Data.EmailID == "" {
		return &mailroom.WebhookResult{Status: "ok", Message: "event has no email id"}
	}

	log, err := t.comms.FindLogByMessageID(ctx, ev.Data.EmailID)
	if err != nil {
		if mailroom.IsErrorCode(err, mailroom.ENOTFOUND) {
			t.logger.Info("webhook event for unknown message",
				"type", ev.Type,
				"email_id", ev.Data.EmailID)
			return &mailroom.WebhookResult{Status: "ok", Message: "no matching communication"}
		}
		t.logger.Error("webhook log lookup failed",
			"type", ev.Type,
			"email_id", ev.Data.EmailID,
			"error", err)
		return &mailroom.WebhookResult{Status: "error", Message: mailroom.ErrorMessage(err)}
	}

	if err := t.apply(ctx, log, ev, status); err != nil {
		t.logger.Error("webhook status update failed",
			"type", ev.Type,
			"email_id", ev.Data.EmailID,
			"error", err)
		return &mailroom.WebhookResult{Status: "error", Message: mailroom.ErrorMessage(err)}
	}

	t.logger.Info("delivery status updated",
		"type", ev.Type,
		"email_id", ev.Data.EmailID,
		"status", string(status))
	return &mailroom.WebhookResult{Status: "ok"}
}

// apply advances the row's delivery status and side effects for one event.
func (t *Tracker) apply(ctx context.Context, log *mailroom.CommunicationLog, ev *mailroom.WebhookEvent, status mailroom.DeliveryStatus) error {
	prev := log.DeliveryStatus
	wasRead := log.ReadByRecipient

	if statusRank[status] > statusRank[prev] {
		if err := t.comms.UpdateDeliveryStatus(ctx, log.ID, status); err != nil {
			return err
		}
	}

	switch ev.Type {
	case mailroom.EventOpened, mailroom.EventClicked:
		if !wasRead {
			if err := t.comms.MarkRead(ctx, log.ID, t.now()); err != nil {
				return err
			}
		}
	case mailroom.EventBounced:
		detail := ev.Data.Bounce.Message
		if detail == "" {
			detail = "no detail provided"
		}
		if prev != mailroom.DeliveryBounced {
			return t.comms.AddComment(ctx, log.ID, fmt.Sprintf("Email bounced: %s", detail))
		}
	case mailroom.EventComplained:
		if prev != mailroom.DeliveryComplained {
			return t.comms.AddComment(ctx, log.ID, "Recipient marked this email as spam")
		}
	}
	return nil
}

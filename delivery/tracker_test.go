package delivery_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumicraft/mailroom"
	"github.com/alumicraft/mailroom/delivery"
	"github.com/alumicraft/mailroom/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededComms() (*mock.CommunicationService, *mailroom.CommunicationLog) {
	log := &mailroom.CommunicationLog{
		ID:               uuid.New(),
		ReferenceDoctype: "Sales Invoice",
		ReferenceName:    "INV-0001",
		Recipient:        "billing@acme.example",
		MessageID:        "msg_123",
		Status:           mailroom.CommunicationSent,
		DeliveryStatus:   mailroom.DeliverySent,
	}
	return &mock.CommunicationService{Logs: []*mailroom.CommunicationLog{log}}, log
}

func event(eventType, emailID string) *mailroom.WebhookEvent {
	return &mailroom.WebhookEvent{
		Type: eventType,
		Data: mailroom.WebhookEventData{EmailID: emailID},
	}
}

func TestHandleEvent_Delivered(t *testing.T) {
	comms, log := seededComms()
	tracker := delivery.NewTracker(comms, testLogger())

	result := tracker.HandleEvent(context.Background(), event(mailroom.EventDelivered, "msg_123"))
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, mailroom.DeliveryDelivered, log.DeliveryStatus)
}

func TestHandleEvent_OpenedSetsReadFlag(t *testing.T) {
	comms, log := seededComms()
	tracker := delivery.NewTracker(comms, testLogger())

	result := tracker.HandleEvent(context.Background(), event(mailroom.EventOpened, "msg_123"))
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, mailroom.DeliveryOpened, log.DeliveryStatus)
	assert.True(t, log.ReadByRecipient)
	require.NotNil(t, log.ReadByRecipientOn)
}

func TestHandleEvent_ClickedSetsReadFlag(t *testing.T) {
	comms, log := seededComms()
	tracker := delivery.NewTracker(comms, testLogger())

	tracker.HandleEvent(context.Background(), event(mailroom.EventClicked, "msg_123"))
	assert.Equal(t, mailroom.DeliveryClicked, log.DeliveryStatus)
	assert.True(t, log.ReadByRecipient)
}

func TestHandleEvent_BouncedAddsComment(t *testing.T) {
	comms, log := seededComms()
	tracker := delivery.NewTracker(comms, testLogger())

	ev := event(mailroom.EventBounced, "msg_123")
	ev.Data.Bounce.Message = "mailbox full"
	result := tracker.HandleEvent(context.Background(), ev)

	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, mailroom.DeliveryBounced, log.DeliveryStatus)
	require.Len(t, comms.Comments[log.ID], 1)
	assert.Contains(t, comms.Comments[log.ID][0], "mailbox full")
}

func TestHandleEvent_ComplainedAddsComment(t *testing.T) {
	comms, log := seededComms()
	tracker := delivery.NewTracker(comms, testLogger())

	tracker.HandleEvent(context.Background(), event(mailroom.EventComplained, "msg_123"))
	assert.Equal(t, mailroom.DeliveryComplained, log.DeliveryStatus)
	require.Len(t, comms.Comments[log.ID], 1)
	assert.Contains(t, comms.Comments[log.ID][0], "spam")
}

func TestHandleEvent_ReplayIsIdempotent(t *testing.T) {
	comms, log := seededComms()
	tracker := delivery.NewTracker(comms, testLogger())

	ev := event(mailroom.EventBounced, "msg_123")
	ev.Data.Bounce.Message = "hard bounce"
	tracker.HandleEvent(context.Background(), ev)
	firstReadState := log.ReadByRecipient

	// Replaying the same event changes nothing.
	tracker.HandleEvent(context.Background(), ev)
	assert.Equal(t, mailroom.DeliveryBounced, log.DeliveryStatus)
	assert.Equal(t, firstReadState, log.ReadByRecipient)
	assert.Len(t, comms.Comments[log.ID], 1)
}

func TestHandleEvent_LateEventNeverRegresses(t *testing.T) {
	comms, log := seededComms()
	tracker := delivery.NewTracker(comms, testLogger())

	tracker.HandleEvent(context.Background(), event(mailroom.EventOpened, "msg_123"))
	// A delayed delivered event must not undo the opened state.
	tracker.HandleEvent(context.Background(), event(mailroom.EventDelivered, "msg_123"))
	assert.Equal(t, mailroom.DeliveryOpened, log.DeliveryStatus)
}

func TestHandleEvent_SubstringMessageIDMatch(t *testing.T) {
	comms, log := seededComms()
	log.MessageID = "<msg_123@resend>"
	tracker := delivery.NewTracker(comms, testLogger())

	result := tracker.HandleEvent(context.Background(), event(mailroom.EventDelivered, "msg_123"))
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, mailroom.DeliveryDelivered, log.DeliveryStatus)
}

func TestHandleEvent_UnknownMessageIsAcknowledged(t *testing.T) {
	comms, _ := seededComms()
	tracker := delivery.NewTracker(comms, testLogger())

	result := tracker.HandleEvent(context.Background(), event(mailroom.EventDelivered, "msg_unknown"))
	assert.Equal(t, "ok", result.Status)
	assert.Contains(t, result.Message, "no matching communication")
}

func TestHandleEvent_UnknownTypeAcknowledgedWithoutMutation(t *testing.T) {
	comms, log := seededComms()
	tracker := delivery.NewTracker(comms, testLogger())

	result := tracker.HandleEvent(context.Background(), event("email.scheduled", "msg_123"))
	assert.Equal(t, "ok", result.Status)
	assert.Contains(t, result.Message, "email.scheduled")
	assert.Equal(t, mailroom.DeliverySent, log.DeliveryStatus)
}

func TestHandleEvent_EmptyEventAcknowledged(t *testing.T) {
	comms, log := seededComms()
	tracker := delivery.NewTracker(comms, testLogger())

	// The acknowledgment contract is {status: ok|error}; no-op events ack
	// "ok" without touching any row.
	assert.Equal(t, "ok", tracker.HandleEvent(context.Background(), nil).Status)
	assert.Equal(t, "ok", tracker.HandleEvent(context.Background(), event(mailroom.EventDelivered, "")).Status)
	assert.Equal(t, mailroom.DeliverySent, log.DeliveryStatus)
}

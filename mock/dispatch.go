package mock

import (
	"context"

	"github.com/alumicraft/mailroom"
)

// Compile-time interface checks
var (
	_ mailroom.DispatchService = (*DispatchService)(nil)
	_ mailroom.DeliveryTracker = (*DeliveryTracker)(nil)
)

// DispatchService is a mock implementation of mailroom.DispatchService.
type DispatchService struct {
	SendDocumentEmailFn func(ctx context.Context, req *mailroom.DispatchRequest) (*mailroom.DispatchResult, error)
	InterceptFn         func(ctx context.Context, ev *mailroom.InterceptEvent) (*mailroom.InterceptDecision, error)
	ResolveRecipientFn  func(ctx context.Context, doctype, name string) (string, error)
	PartyEmailFn        func(ctx context.Context, doctype, party string) (string, error)
	StatusFn            func(ctx context.Context) (*mailroom.ServiceStatus, error)
	SendTestEmailFn     func(ctx context.Context, to string) (*mailroom.DispatchResult, error)
	TestConnectionFn    func(ctx context.Context) error

	Requests []*mailroom.DispatchRequest
}

func (s *DispatchService) SendDocumentEmail(ctx context.Context, req *mailroom.DispatchRequest) (*mailroom.DispatchResult, error) {
	s.Requests = append(s.Requests, req)
	if s.SendDocumentEmailFn != nil {
		return s.SendDocumentEmailFn(ctx, req)
	}
	return &mailroom.DispatchResult{Success: true}, nil
}

func (s *DispatchService) Intercept(ctx context.Context, ev *mailroom.InterceptEvent) (*mailroom.InterceptDecision, error) {
	if s.InterceptFn != nil {
		return s.InterceptFn(ctx, ev)
	}
	return &mailroom.InterceptDecision{Handled: false}, nil
}

func (s *DispatchService) ResolveRecipient(ctx context.Context, doctype, name string) (string, error) {
	if s.ResolveRecipientFn != nil {
		return s.ResolveRecipientFn(ctx, doctype, name)
	}
	return "", mailroom.NoRecipient("no email address found for %s %s", doctype, name)
}

func (s *DispatchService) PartyEmail(ctx context.Context, doctype, party string) (string, error) {
	if s.PartyEmailFn != nil {
		return s.PartyEmailFn(ctx, doctype, party)
	}
	return "", mailroom.NoRecipient("no email address found for %s %s", doctype, party)
}

func (s *DispatchService) Status(ctx context.Context) (*mailroom.ServiceStatus, error) {
	if s.StatusFn != nil {
		return s.StatusFn(ctx)
	}
	return &mailroom.ServiceStatus{}, nil
}

func (s *DispatchService) SendTestEmail(ctx context.Context, to string) (*mailroom.DispatchResult, error) {
	if s.SendTestEmailFn != nil {
		return s.SendTestEmailFn(ctx, to)
	}
	return &mailroom.DispatchResult{Success: true, Recipient: to}, nil
}

func (s *DispatchService) TestConnection(ctx context.Context) error {
	if s.TestConnectionFn != nil {
		return s.TestConnectionFn(ctx)
	}
	return nil
}

// DeliveryTracker is a mock implementation of mailroom.DeliveryTracker.
type DeliveryTracker struct {
	HandleEventFn func(ctx context.Context, ev *mailroom.WebhookEvent) *mailroom.WebhookResult

	Events []*mailroom.WebhookEvent
}

func (t *DeliveryTracker) HandleEvent(ctx context.Context, ev *mailroom.WebhookEvent) *mailroom.WebhookResult {
	t.Events = append(t.Events, ev)
	if t.HandleEventFn != nil {
		return t.HandleEventFn(ctx, ev)
	}
	return &mailroom.WebhookResult{Status: "ok"}
}

package mock

import (
	"context"
	"sync"

	"github.com/alumicraft/mailroom"
)

// Compile-time interface check
var _ mailroom.TransportClient = (*TransportClient)(nil)

// TransportClient is a mock implementation of mailroom.TransportClient.
type TransportClient struct {
	SendFn           func(ctx context.Context, apiKey string, email *mailroom.OutboundEmail) (*mailroom.SendOutcome, error)
	TestConnectionFn func(ctx context.Context, apiKey string) error

	// Sent records every email handed to Send, guarded for concurrent
	// dispatch tests.
	mu   sync.Mutex
	Sent []*mailroom.OutboundEmail
}

func (c *TransportClient) Send(ctx context.Context, apiKey string, email *mailroom.OutboundEmail) (*mailroom.SendOutcome, error) {
	c.mu.Lock()
	c.Sent = append(c.Sent, email)
	c.mu.Unlock()
	if c.SendFn != nil {
		return c.SendFn(ctx, apiKey, email)
	}
	return &mailroom.SendOutcome{Success: true, MessageID: "msg_mock", Recipient: email.To[0]}, nil
}

func (c *TransportClient) TestConnection(ctx context.Context, apiKey string) error {
	if c.TestConnectionFn != nil {
		return c.TestConnectionFn(ctx, apiKey)
	}
	return nil
}

// SendCount returns the number of provider calls made.
func (c *TransportClient) SendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}

// LastSent returns the most recent email handed to Send, or nil.
func (c *TransportClient) LastSent() *mailroom.OutboundEmail {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Sent) == 0 {
		return nil
	}
	return c.Sent[len(c.Sent)-1]
}

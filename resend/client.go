// Package resend is the Resend HTTP transport client. It is stateless:
// credentials arrive per call from the settings snapshot, one provider
// request per Send, no retries.
package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/alumicraft/mailroom"
)

// Ensure client implements interface.
var _ mailroom.TransportClient = (*Client)(nil)

const (
	defaultBaseURL = "https://api.resend.com"

	// requestTimeout bounds one provider round trip.
	requestTimeout = 30 * time.Second
)

// Client talks to the Resend API.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a transport client against the production API.
func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: requestTimeout},
	}
}

// NewClientURL creates a client against a custom endpoint, used by tests.
func NewClientURL(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: requestTimeout},
	}
}

// sendPayload is the provider wire format for POST /emails.
type sendPayload struct {
	From        string                `json:"from"`
	To          []string              `json:"to"`
	CC          []string              `json:"cc,omitempty"`
	BCC         []string              `json:"bcc,omitempty"`
	ReplyTo     string                `json:"reply_to,omitempty"`
	Subject     string                `json:"subject"`
	HTML        string                `json:"html,omitempty"`
	Text        string                `json:"text,omitempty"`
	Attachments []mailroom.Attachment `json:"attachments,omitempty"`
	Tags        []mailroom.Tag        `json:"tags,omitempty"`
}

// sendResponse is the success body of POST /emails.
type sendResponse struct {
	ID string `json:"id"`
}

// errorResponse is the provider's error body shape.
type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Send performs exactly one POST /emails call and classifies the outcome.
// Every non-nil error is an EPROVIDER domain error carrying a rejected,
// timeout or transport reason.
func (c *Client) Send(ctx context.Context, apiKey string, email *mailroom.OutboundEmail) (*mailroom.SendOutcome, error) {
	if apiKey == "" {
		return nil, mailroom.Configuration("Provider API key is not configured")
	}
	if email == nil || len(email.To) == 0 {
		return nil, mailroom.Invalid("outbound email has no recipient")
	}

	payload := sendPayload{
		From:        email.From,
		To:          email.To,
		CC:          email.CC,
		BCC:         email.BCC,
		ReplyTo:     email.ReplyTo,
		Subject:     email.Subject,
		HTML:        email.HTML,
		Text:        email.Text,
		Attachments: email.Attachments,
		Tags:        email.Tags,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, mailroom.Internal("encode provider payload", err)
	}

	resp, err := c.do(ctx, apiKey, http.MethodPost, "/emails", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, mailroom.Provider(mailroom.ReasonTransport, "failed reading provider response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, rejectionError(resp.StatusCode, respBody)
	}

	var ok sendResponse
	if err := json.Unmarshal(respBody, &ok); err != nil {
		return nil, mailroom.Provider(mailroom.ReasonRejected, "provider returned an unreadable success response", err)
	}
	return &mailroom.SendOutcome{
		Success:   true,
		MessageID: ok.ID,
		Recipient: email.To[0],
	}, nil
}

// TestConnection probes the API by listing domains with the given key.
func (c *Client) TestConnection(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return mailroom.Configuration("Provider API key is not configured")
	}
	resp, err := c.do(ctx, apiKey, http.MethodGet, "/domains", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return mailroom.Provider(mailroom.ReasonRejected, "provider rejected the API key", nil)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return rejectionError(resp.StatusCode, body)
	}
	return nil
}

// do performs one HTTP round trip and classifies network-level failures.
func (c *Client) do(ctx context.Context, apiKey, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, mailroom.Internal("build provider request", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, mailroom.Provider(mailroom.ReasonTimeout, "provider request timed out", err)
		}
		return nil, mailroom.Provider(mailroom.ReasonTransport, "provider request failed", err)
	}
	return resp, nil
}

// rejectionError builds the EPROVIDER error for a non-200 response,
// surfacing the provider's own message when the body parses.
func rejectionError(status int, body []byte) error {
	var detail errorResponse
	if err := json.Unmarshal(body, &detail); err == nil && detail.Message != "" {
		return mailroom.Provider(mailroom.ReasonRejected,
			fmt.Sprintf("provider rejected the request (%d): %s", status, detail.Message), nil)
	}
	return mailroom.Provider(mailroom.ReasonRejected,
		fmt.Sprintf("provider rejected the request (%d)", status), nil)
}

// isTimeout reports whether a round-trip failure was a deadline expiry
// rather than a connection-level fault.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

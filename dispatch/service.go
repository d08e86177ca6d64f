package dispatch

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/alumicraft/mailroom"
)

// Ensure service implements interface.
var _ mailroom.DispatchService = (*Service)(nil)

// Service is the dispatch interceptor. It owns the at-most-once guarantee:
// one logical document email event produces at most one provider call, with
// concurrent duplicates collapsed onto a single in-flight send.
type Service struct {
	settings  mailroom.SettingsService
	store     mailroom.DocumentStore
	comms     mailroom.CommunicationService
	transport mailroom.TransportClient
	printer   mailroom.PrintService
	native    mailroom.NativeMailer
	resolver  *Resolver
	logger    *slog.Logger

	// group collapses concurrent sends for the same document.
	group singleflight.Group
}

// NewService creates the dispatch service. printer and native are optional;
// a nil printer skips PDF attachments and a nil native mailer disables the
// host fallback path regardless of settings.
func NewService(
	settings mailroom.SettingsService,
	store mailroom.DocumentStore,
	comms mailroom.CommunicationService,
	transport mailroom.TransportClient,
	printer mailroom.PrintService,
	native mailroom.NativeMailer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		settings:  settings,
		store:     store,
		comms:     comms,
		transport: transport,
		printer:   printer,
		native:    native,
		resolver:  NewResolver(store),
		logger:    logger,
	}
}

// SendDocumentEmail runs the full pipeline for one document: settings gate,
// permission and submit checks, recipient resolution, template build,
// provider send, and communication logging. The host fallback runs when
// enabled and the provider call fails.
func (s *Service) SendDocumentEmail(ctx context.Context, req *mailroom.DispatchRequest) (*mailroom.DispatchResult, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, mailroom.Internal("load email settings", err)
	}
	return s.send(ctx, settings, req, settings.FallbackToHost)
}

// Intercept is the hook the host calls before its native send path. Once
// an event passes the gates, interception is unconditional: the host's
// native path must not run, and failures are reported in the decision.
// The one exception is a provider failure with the host fallback enabled,
// where fallthrough lets the host's own send serve as the fallback.
func (s *Service) Intercept(ctx context.Context, ev *mailroom.InterceptEvent) (*mailroom.InterceptDecision, error) {
	fallthroughDecision := &mailroom.InterceptDecision{Handled: false}

	if ev == nil || !ev.SendEmail || ev.SentOrReceived != "Sent" {
		return fallthroughDecision, nil
	}
	if ev.Medium != "" && ev.Medium != "Email" {
		return fallthroughDecision, nil
	}
	if ev.Doctype == "" || ev.DocumentName == "" {
		return fallthroughDecision, nil
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		s.logger.Error("intercept: load settings failed", "error", err)
		return fallthroughDecision, nil
	}
	if !settings.Enabled || !settings.Supports(ev.Doctype) {
		return fallthroughDecision, nil
	}

	req := &mailroom.DispatchRequest{
		Doctype:    ev.Doctype,
		DocumentID: ev.DocumentName,
		CC:         ev.CC,
		BCC:        ev.BCC,
	}
	if len(ev.Recipients) > 0 {
		req.OverrideTo = ev.Recipients[0]
		// The provider payload carries one primary recipient per dispatch;
		// extra event recipients ride along as CC.
		if len(ev.Recipients) > 1 {
			cc := append([]string{}, ev.Recipients[1:]...)
			req.CC = append(cc, ev.CC...)
		}
	}

	result, err := s.send(ctx, settings, req, false)
	if err != nil {
		if settings.FallbackToHost && mailroom.IsErrorCode(err, mailroom.EPROVIDER) {
			s.logger.Warn("intercept: provider send failed, falling through to host send",
				"doctype", ev.Doctype,
				"name", ev.DocumentName,
				"error", err)
			return fallthroughDecision, nil
		}
		s.logger.Error("intercept: dispatch failed",
			"doctype", ev.Doctype,
			"name", ev.DocumentName,
			"error", err)
		return &mailroom.InterceptDecision{
			Handled: true,
			Result: &mailroom.DispatchResult{
				Success: false,
				Message: mailroom.ErrorMessage(err),
			},
		}, nil
	}
	return &mailroom.InterceptDecision{Handled: true, Result: result}, nil
}

// send is the shared pipeline behind SendDocumentEmail and Intercept.
func (s *Service) send(ctx context.Context, settings *mailroom.Settings, req *mailroom.DispatchRequest, allowFallback bool) (*mailroom.DispatchResult, error) {
	if req.Doctype == "" || req.DocumentID == "" {
		return nil, mailroom.Invalid("doctype and document_id are required")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	cfg := settings.DoctypeConfig(req.Doctype)
	if cfg == nil {
		return nil, mailroom.Configuration("document type %q is not configured for email dispatch", req.Doctype)
	}

	doc, err := s.store.GetDocument(ctx, req.Doctype, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := s.store.HasPermission(ctx, req.Doctype, req.DocumentID, "email"); err != nil {
		return nil, err
	}
	if cfg.RequireSubmit && !doc.Submitted() {
		return nil, mailroom.Precondition("%s %s must be submitted before it can be emailed", req.Doctype, req.DocumentID)
	}

	recipient := req.OverrideTo
	if recipient == "" {
		recipient = s.resolver.Resolve(ctx, doc, cfg)
	}
	if recipient == "" {
		return nil, mailroom.NoRecipient("no email address found for %s %s", req.Doctype, req.DocumentID)
	}

	email, subject, body, err := s.buildEmail(ctx, settings, cfg, doc, req, recipient)
	if err != nil {
		return nil, err
	}

	// Concurrent sends for the same document share one provider call and
	// one result.
	key := req.Doctype + "|" + req.DocumentID
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.deliver(ctx, settings, req, doc, email, subject, body, allowFallback)
	})
	if err != nil {
		return nil, err
	}
	return v.(*mailroom.DispatchResult), nil
}

// deliver performs the single provider call, the fallback branch, and the
// communication log write. Runs inside the singleflight group.
func (s *Service) deliver(
	ctx context.Context,
	settings *mailroom.Settings,
	req *mailroom.DispatchRequest,
	doc *mailroom.Document,
	email *mailroom.OutboundEmail,
	subject, body string,
	allowFallback bool,
) (*mailroom.DispatchResult, error) {
	if settings.LogAllAttempts {
		s.logger.Debug("provider send attempt",
			"doctype", doc.Doctype,
			"name", doc.Name,
			"recipient", email.To[0],
			"subject", subject,
			"attachments", len(email.Attachments))
	}

	outcome, sendErr := s.transport.Send(ctx, settings.APIKey, email)
	if sendErr == nil && outcome != nil && outcome.Success {
		s.logger.Info("email sent",
			"doctype", doc.Doctype,
			"name", doc.Name,
			"recipient", email.To[0],
			"message_id", outcome.MessageID)
		s.logSent(ctx, req, settings, email, subject, body, outcome.MessageID)
		return &mailroom.DispatchResult{
			Success:   true,
			Message:   fmt.Sprintf("Email sent to %s", email.To[0]),
			MessageID: outcome.MessageID,
			Recipient: email.To[0],
		}, nil
	}
	if sendErr == nil {
		sendErr = mailroom.Provider(mailroom.ReasonRejected, "provider reported failure without detail", nil)
	}

	s.logger.Error("provider send failed",
		"doctype", doc.Doctype,
		"name", doc.Name,
		"recipient", email.To[0],
		"reason", mailroom.ErrorReason(sendErr),
		"error", sendErr)

	// The failed attempt is recorded before the fallback decision; the
	// native mailer owns its own communication record if it runs.
	s.logError(ctx, req, settings, email, subject, body, sendErr)

	if allowFallback && s.native != nil {
		if fbErr := s.native.SendMail(ctx, &mailroom.NativeMessage{
			Recipients:       email.To,
			Subject:          subject,
			Message:          body,
			ReferenceDoctype: doc.Doctype,
			ReferenceName:    doc.Name,
		}); fbErr != nil {
			return nil, mailroom.Fallback(
				fmt.Sprintf("provider send failed (%s) and host fallback also failed: %v", mailroom.ErrorMessage(sendErr), fbErr),
				sendErr)
		}
		s.logger.Info("host fallback send succeeded",
			"doctype", doc.Doctype,
			"name", doc.Name,
			"recipient", email.To[0])
		return &mailroom.DispatchResult{
			Success:   true,
			Message:   fmt.Sprintf("Provider unavailable, sent via host mailer to %s", email.To[0]),
			Recipient: email.To[0],
			Fallback:  true,
		}, nil
	}

	return nil, sendErr
}

// buildEmail assembles the outbound message: template data, subject, HTML
// body, optional PDF attachment, and provenance tags.
func (s *Service) buildEmail(
	ctx context.Context,
	settings *mailroom.Settings,
	cfg *mailroom.DoctypeConfig,
	doc *mailroom.Document,
	req *mailroom.DispatchRequest,
	recipient string,
) (*mailroom.OutboundEmail, string, string, error) {
	schema, err := s.store.Describe(ctx, doc.Doctype)
	if err != nil {
		schema = nil
	}
	company := s.companyInfo(ctx, doc)
	data := BuildTemplateData(doc, schema, company, req.CustomMessage, s.store.DefaultCurrency(ctx), settings.BaseURL)

	subject := data.Str("subject")
	if cfg.SubjectTemplate != "" {
		companyName := ""
		if company != nil {
			companyName = company.CompanyName
		}
		subject = RenderSubjectTemplate(cfg.SubjectTemplate, doc, companyName)
	}
	data["subject"] = subject

	htmlBody, textBody, err := RenderEmailBody(data)
	if err != nil {
		return nil, "", "", err
	}

	email := &mailroom.OutboundEmail{
		From:    settings.Sender(),
		To:      []string{recipient},
		CC:      req.CC,
		BCC:     req.BCC,
		Subject: subject,
		HTML:    htmlBody,
		Text:    textBody,
		Tags: []mailroom.Tag{
			{Name: "doctype", Value: scrub(doc.Doctype)},
			{Name: "document", Value: scrub(doc.Name)},
		},
	}
	if settings.SenderEmail != "" {
		email.ReplyTo = settings.SenderEmail
	}

	if attachment := s.renderAttachment(ctx, doc, cfg); attachment != nil {
		email.Attachments = append(email.Attachments, *attachment)
	}

	return email, subject, htmlBody, nil
}

// renderAttachment renders the document PDF. Rendering failures never block
// the send; the email goes out without the attachment.
func (s *Service) renderAttachment(ctx context.Context, doc *mailroom.Document, cfg *mailroom.DoctypeConfig) *mailroom.Attachment {
	if s.printer == nil {
		return nil
	}
	pdf, filename, err := s.printer.RenderPDF(ctx, doc.Doctype, doc.Name, cfg.PrintFormat)
	if err != nil {
		s.logger.Warn("pdf attachment failed, sending without it",
			"doctype", doc.Doctype,
			"name", doc.Name,
			"error", err)
		return nil
	}
	if len(pdf) == 0 {
		return nil
	}
	if filename == "" {
		filename = fmt.Sprintf("%s-%s.pdf", scrub(doc.Doctype), doc.Name)
	}
	return &mailroom.Attachment{
		Filename: filename,
		Content:  base64.StdEncoding.EncodeToString(pdf),
	}
}

// companyInfo resolves the company referenced by the document, falling back
// to the host default. Lookup failures yield nil rather than blocking.
func (s *Service) companyInfo(ctx context.Context, doc *mailroom.Document) *mailroom.CompanyInfo {
	name := doc.Str("company")
	if name == "" {
		name = s.store.DefaultCompany(ctx)
	}
	if name == "" {
		return nil
	}
	info, err := s.store.CompanyInfo(ctx, name)
	if err != nil {
		return &mailroom.CompanyInfo{CompanyName: name}
	}
	return info
}

// logSent writes the Sent communication row. Best effort: a log failure is
// reported but never turns a delivered email into an error.
func (s *Service) logSent(ctx context.Context, req *mailroom.DispatchRequest, settings *mailroom.Settings, email *mailroom.OutboundEmail, subject, body, messageID string) {
	if req.SkipCommunication {
		return
	}
	log := &mailroom.CommunicationLog{
		ReferenceDoctype: req.Doctype,
		ReferenceName:    req.DocumentID,
		Sender:           settings.Sender(),
		Recipient:        email.To[0],
		CC:               strings.Join(email.CC, ", "),
		BCC:              strings.Join(email.BCC, ", "),
		Subject:          subject,
		Content:          body,
		MessageID:        messageID,
		Status:           mailroom.CommunicationSent,
		DeliveryStatus:   mailroom.DeliverySent,
	}
	if err := s.comms.CreateLog(ctx, log); err != nil {
		s.logger.Error("communication log write failed",
			"doctype", req.Doctype,
			"name", req.DocumentID,
			"error", err)
	}
}

// logError writes the Error communication row. Every failed provider
// attempt leaves a row unless the caller owns the record.
func (s *Service) logError(ctx context.Context, req *mailroom.DispatchRequest, settings *mailroom.Settings, email *mailroom.OutboundEmail, subject, body string, sendErr error) {
	if req.SkipCommunication {
		return
	}
	log := &mailroom.CommunicationLog{
		ReferenceDoctype: req.Doctype,
		ReferenceName:    req.DocumentID,
		Sender:           settings.Sender(),
		Recipient:        email.To[0],
		CC:               strings.Join(email.CC, ", "),
		BCC:              strings.Join(email.BCC, ", "),
		Subject:          subject,
		Content:          body,
		Status:           mailroom.CommunicationError,
		ErrorMessage:     mailroom.ErrorMessage(sendErr),
	}
	if err := s.comms.CreateLog(ctx, log); err != nil {
		s.logger.Error("communication log write failed",
			"doctype", req.Doctype,
			"name", req.DocumentID,
			"error", err)
	}
}

// ResolveRecipient previews the recipient address a dispatch would use.
func (s *Service) ResolveRecipient(ctx context.Context, doctype, name string) (string, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return "", mailroom.Internal("load email settings", err)
	}
	doc, err := s.store.GetDocument(ctx, doctype, name)
	if err != nil {
		return "", err
	}
	recipient := s.resolver.Resolve(ctx, doc, settings.DoctypeConfig(doctype))
	if recipient == "" {
		return "", mailroom.NoRecipient("no email address found for %s %s", doctype, name)
	}
	return recipient, nil
}

// PartyEmail looks up the primary email for a party record.
func (s *Service) PartyEmail(ctx context.Context, doctype, party string) (string, error) {
	if doctype == "" || party == "" {
		return "", mailroom.Invalid("doctype and party are required")
	}
	email := s.resolver.PartyEmail(ctx, doctype, party)
	if email == "" {
		return "", mailroom.NoRecipient("no email address found for %s %s", doctype, party)
	}
	return email, nil
}

// Status reports the service configuration state without probing the
// provider.
func (s *Service) Status(ctx context.Context) (*mailroom.ServiceStatus, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, mailroom.Internal("load email settings", err)
	}

	templates := make(map[string]bool)
	for doctype := range defaultDoctypeStatusSet() {
		templates[doctype] = settings.TemplateID(doctype) != ""
	}
	for doctype := range settings.DoctypeConfigs {
		templates[doctype] = settings.TemplateID(doctype) != ""
	}

	doctypes := settings.ConfiguredDoctypes()
	sort.Strings(doctypes)

	return &mailroom.ServiceStatus{
		Enabled:             settings.Enabled,
		Configured:          settings.Validate() == nil,
		SenderEmail:         settings.SenderEmail,
		TemplatesConfigured: templates,
		ConfiguredDoctypes:  doctypes,
	}, nil
}

// defaultDoctypeStatusSet lists the well-known document types surfaced in
// the status response even when unconfigured.
func defaultDoctypeStatusSet() map[string]struct{} {
	return map[string]struct{}{
		"Sales Invoice":   {},
		"Quotation":       {},
		"Sales Order":     {},
		"Payment Request": {},
	}
}

// SendTestEmail sends a fixed verification message. No communication row is
// written for test sends.
func (s *Service) SendTestEmail(ctx context.Context, to string) (*mailroom.DispatchResult, error) {
	if to == "" {
		return nil, mailroom.Invalid("recipient email is required")
	}
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, mailroom.Internal("load email settings", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	email := &mailroom.OutboundEmail{
		From:    settings.Sender(),
		To:      []string{to},
		Subject: "Test Email",
		HTML:    "<p>This is a test email confirming your email service configuration works.</p>",
		Text:    "This is a test email confirming your email service configuration works.",
		Tags:    []mailroom.Tag{{Name: "category", Value: "test"}},
	}
	outcome, err := s.transport.Send(ctx, settings.APIKey, email)
	if err != nil {
		return nil, err
	}
	return &mailroom.DispatchResult{
		Success:   true,
		Message:   fmt.Sprintf("Test email sent to %s", to),
		MessageID: outcome.MessageID,
		Recipient: to,
	}, nil
}

// TestConnection probes the provider API with the configured credentials.
func (s *Service) TestConnection(ctx context.Context) error {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return mailroom.Internal("load email settings", err)
	}
	if settings.APIKey == "" {
		return mailroom.Configuration("Provider API key is not configured")
	}
	return s.transport.TestConnection(ctx, settings.APIKey)
}

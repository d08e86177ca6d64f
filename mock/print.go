package mock

import (
	"context"

	"github.com/alumicraft/mailroom"
)

// Compile-time interface checks
var (
	_ mailroom.PrintService = (*PrintService)(nil)
	_ mailroom.NativeMailer = (*NativeMailer)(nil)
)

// PrintService is a mock implementation of mailroom.PrintService.
type PrintService struct {
	RenderPDFFn func(ctx context.Context, doctype, name, printFormat string) ([]byte, string, error)
}

func (s *PrintService) RenderPDF(ctx context.Context, doctype, name, printFormat string) ([]byte, string, error) {
	if s.RenderPDFFn != nil {
		return s.RenderPDFFn(ctx, doctype, name, printFormat)
	}
	return []byte("%PDF-1.4 mock"), name + ".pdf", nil
}

// NativeMailer is a mock implementation of mailroom.NativeMailer.
type NativeMailer struct {
	SendMailFn func(ctx context.Context, msg *mailroom.NativeMessage) error

	Sent []*mailroom.NativeMessage
}

func (m *NativeMailer) SendMail(ctx context.Context, msg *mailroom.NativeMessage) error {
	m.Sent = append(m.Sent, msg)
	if m.SendMailFn != nil {
		return m.SendMailFn(ctx, msg)
	}
	return nil
}

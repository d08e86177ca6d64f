package mock

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alumicraft/mailroom"
)

// Compile-time interface check
var _ mailroom.CommunicationService = (*CommunicationService)(nil)

// CommunicationService is an in-memory mock of mailroom.CommunicationService.
// It behaves like the real store (exact-then-substring message id lookup)
// so tracker tests exercise realistic semantics.
type CommunicationService struct {
	CreateLogFn            func(ctx context.Context, log *mailroom.CommunicationLog) error
	FindLogByMessageIDFn   func(ctx context.Context, messageID string) (*mailroom.CommunicationLog, error)
	UpdateDeliveryStatusFn func(ctx context.Context, id uuid.UUID, status mailroom.DeliveryStatus) error

	Logs     []*mailroom.CommunicationLog
	Comments map[uuid.UUID][]string
}

func (s *CommunicationService) CreateLog(ctx context.Context, log *mailroom.CommunicationLog) error {
	if s.CreateLogFn != nil {
		return s.CreateLogFn(ctx, log)
	}
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	now := time.Now()
	log.CreatedAt = now
	log.UpdatedAt = now
	s.Logs = append(s.Logs, log)
	return nil
}

func (s *CommunicationService) FindLogByMessageID(ctx context.Context, messageID string) (*mailroom.CommunicationLog, error) {
	if s.FindLogByMessageIDFn != nil {
		return s.FindLogByMessageIDFn(ctx, messageID)
	}
	for _, log := range s.Logs {
		if log.MessageID == messageID {
			return log, nil
		}
	}
	for _, log := range s.Logs {
		if log.MessageID != "" && strings.Contains(log.MessageID, messageID) {
			return log, nil
		}
	}
	return nil, mailroom.NotFound("No communication found for message id %s", messageID)
}

func (s *CommunicationService) FindLogsByReference(ctx context.Context, doctype, name string) ([]*mailroom.CommunicationLog, error) {
	var out []*mailroom.CommunicationLog
	for i := len(s.Logs) - 1; i >= 0; i-- {
		if s.Logs[i].ReferenceDoctype == doctype && s.Logs[i].ReferenceName == name {
			out = append(out, s.Logs[i])
		}
	}
	return out, nil
}

func (s *CommunicationService) UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, status mailroom.DeliveryStatus) error {
	if s.UpdateDeliveryStatusFn != nil {
		return s.UpdateDeliveryStatusFn(ctx, id, status)
	}
	log := s.find(id)
	if log == nil {
		return mailroom.NotFound("Communication log not found")
	}
	log.DeliveryStatus = status
	log.UpdatedAt = time.Now()
	return nil
}

func (s *CommunicationService) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	log := s.find(id)
	if log == nil {
		return mailroom.NotFound("Communication log not found")
	}
	if !log.ReadByRecipient {
		log.ReadByRecipient = true
		log.ReadByRecipientOn = &at
	}
	return nil
}

func (s *CommunicationService) AddComment(ctx context.Context, id uuid.UUID, comment string) error {
	if s.find(id) == nil {
		return mailroom.NotFound("Communication log not found")
	}
	if s.Comments == nil {
		s.Comments = map[uuid.UUID][]string{}
	}
	s.Comments[id] = append(s.Comments[id], comment)
	return nil
}

func (s *CommunicationService) find(id uuid.UUID) *mailroom.CommunicationLog {
	for _, log := range s.Logs {
		if log.ID == id {
			return log
		}
	}
	return nil
}

// LastLog returns the most recently created log, or nil if none.
func (s *CommunicationService) LastLog() *mailroom.CommunicationLog {
	if len(s.Logs) == 0 {
		return nil
	}
	return s.Logs[len(s.Logs)-1]
}

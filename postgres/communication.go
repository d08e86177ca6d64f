package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alumicraft/mailroom"
)

// Compile-time check that CommunicationService implements mailroom.CommunicationService.
var _ mailroom.CommunicationService = (*CommunicationService)(nil)

// CommunicationService implements mailroom.CommunicationService using PostgreSQL.
type CommunicationService struct {
	db *DB
}

const communicationColumns = `
	id, reference_doctype, reference_name, sender, recipient, cc, bcc,
	subject, content, message_id, status, delivery_status,
	read_by_recipient, read_by_recipient_on, error_message,
	created_at, updated_at`

func (s *CommunicationService) CreateLog(ctx context.Context, log *mailroom.CommunicationLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	now := time.Now().UTC()
	log.CreatedAt = now
	log.UpdatedAt = now

	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO communication_logs (
			id, reference_doctype, reference_name, sender, recipient, cc, bcc,
			subject, content, message_id, status, delivery_status,
			read_by_recipient, error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		log.ID, log.ReferenceDoctype, log.ReferenceName, log.Sender, log.Recipient,
		log.CC, log.BCC, log.Subject, log.Content, log.MessageID,
		string(log.Status), string(log.DeliveryStatus),
		log.ReadByRecipient, log.ErrorMessage, log.CreatedAt, log.UpdatedAt)
	if err != nil {
		return mailroom.Internal("Failed to create communication log", err)
	}
	return nil
}

func (s *CommunicationService) FindLogByMessageID(ctx context.Context, messageID string) (*mailroom.CommunicationLog, error) {
	if messageID == "" {
		return nil, mailroom.Invalid("message id is required")
	}

	// Exact match first, then a substring match for providers that wrap
	// the id in delimiters.
	log, err := s.scanOne(ctx, `
		SELECT `+communicationColumns+`
		FROM communication_logs
		WHERE message_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, messageID)
	if err == nil {
		return log, nil
	}
	if !mailroom.IsErrorCode(err, mailroom.ENOTFOUND) {
		return nil, err
	}

	log, err = s.scanOne(ctx, `
		SELECT `+communicationColumns+`
		FROM communication_logs
		WHERE message_id LIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT 1`, messageID)
	if err != nil {
		if mailroom.IsErrorCode(err, mailroom.ENOTFOUND) {
			return nil, mailroom.NotFound("No communication found for message id %s", messageID)
		}
		return nil, err
	}
	return log, nil
}

func (s *CommunicationService) FindLogsByReference(ctx context.Context, doctype, name string) ([]*mailroom.CommunicationLog, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT `+communicationColumns+`
		FROM communication_logs
		WHERE reference_doctype = $1 AND reference_name = $2
		ORDER BY created_at DESC`, doctype, name)
	if err != nil {
		return nil, mailroom.Internal("Failed to query communication logs", err)
	}
	defer rows.Close()

	logs := []*mailroom.CommunicationLog{}
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, mailroom.Internal("Failed to scan communication log", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, mailroom.Internal("Failed reading communication logs", err)
	}
	return logs, nil
}

func (s *CommunicationService) UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, status mailroom.DeliveryStatus) error {
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE communication_logs
		SET delivery_status = $2, updated_at = now()
		WHERE id = $1`, id, string(status))
	if err != nil {
		return mailroom.Internal("Failed to update delivery status", err)
	}
	if tag.RowsAffected() == 0 {
		return mailroom.NotFound("Communication log not found")
	}
	return nil
}

func (s *CommunicationService) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE communication_logs
		SET read_by_recipient = TRUE, read_by_recipient_on = $2, updated_at = now()
		WHERE id = $1 AND read_by_recipient = FALSE`, id, at.UTC())
	if err != nil {
		return mailroom.Internal("Failed to mark communication read", err)
	}
	// Zero rows means the flag was already set; marking read is idempotent.
	_ = tag
	return nil
}

func (s *CommunicationService) AddComment(ctx context.Context, id uuid.UUID, comment string) error {
	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO communication_comments (id, communication_id, comment, created_at)
		VALUES ($1, $2, $3, now())`, uuid.New(), id, comment)
	if err != nil {
		if isForeignKeyViolation(err) {
			return mailroom.NotFound("Communication log not found")
		}
		return mailroom.Internal("Failed to add communication comment", err)
	}
	return nil
}

func (s *CommunicationService) scanOne(ctx context.Context, query string, args ...any) (*mailroom.CommunicationLog, error) {
	rows, err := s.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mailroom.Internal("Failed to query communication log", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, mailroom.Internal("Failed reading communication log", err)
		}
		return nil, mailroom.NotFound("Communication log not found")
	}
	log, err := scanLog(rows)
	if err != nil {
		return nil, mailroom.Internal("Failed to scan communication log", err)
	}
	return log, nil
}

func scanLog(row pgx.Row) (*mailroom.CommunicationLog, error) {
	var (
		log            mailroom.CommunicationLog
		status         string
		deliveryStatus string
	)
	err := row.Scan(
		&log.ID, &log.ReferenceDoctype, &log.ReferenceName, &log.Sender,
		&log.Recipient, &log.CC, &log.BCC, &log.Subject, &log.Content,
		&log.MessageID, &status, &deliveryStatus,
		&log.ReadByRecipient, &log.ReadByRecipientOn, &log.ErrorMessage,
		&log.CreatedAt, &log.UpdatedAt)
	if err != nil {
		return nil, err
	}
	log.Status = mailroom.CommunicationStatus(status)
	log.DeliveryStatus = mailroom.DeliveryStatus(deliveryStatus)
	return &log, nil
}

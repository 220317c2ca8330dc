package store

import (
	"context"
	"database/sql"

	"kaizen/models"
)

// EmailLogStore is the outbound email queue.
type EmailLogStore struct {
	db *sql.DB
}

func NewEmailLogStore(db *sql.DB) *EmailLogStore {
	return &EmailLogStore{db: db}
}

// Enqueue adds a pending row for the dispatcher.
func (s *EmailLogStore) Enqueue(ctx context.Context, email, emailType string, metadata map[string]interface{}) error {
	if s.db == nil {
		return ErrUnavailable
	}

	meta, err := encodeJSON(metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO email_logs (email, email_type, status, metadata)
		VALUES ($1, $2, 'pending', $3::jsonb)
	`, NormalizeEmail(email), emailType, meta)
	return classify("enqueue email", err)
}

// ListPending returns up to limit pending rows of one type, oldest first.
func (s *EmailLogStore) ListPending(ctx context.Context, emailType string, limit int) ([]models.EmailLog, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, email_type, status, error_message, metadata, created_at
		FROM email_logs
		WHERE status = 'pending' AND email_type = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, emailType, limit)
	if err != nil {
		return nil, classify("list pending emails", err)
	}
	defer rows.Close()

	logs := []models.EmailLog{}
	for rows.Next() {
		var (
			l        models.EmailLog
			errMsg   sql.NullString
			metadata []byte
		)
		if err := rows.Scan(&l.ID, &l.Email, &l.EmailType, &l.Status, &errMsg, &metadata, &l.CreatedAt); err != nil {
			return nil, classify("scan email log", err)
		}
		l.ErrorMessage = errMsg.String
		l.Metadata = decodeJSON(metadata)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list pending emails", err)
	}
	return logs, nil
}

func (s *EmailLogStore) MarkSent(ctx context.Context, id string, metadata map[string]interface{}) error {
	if s.db == nil {
		return ErrUnavailable
	}

	meta, err := encodeJSON(metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE email_logs
		SET status = 'sent', error_message = NULL, metadata = metadata || $2::jsonb
		WHERE id = $1
	`, id, meta)
	return classify("mark email sent", err)
}

func (s *EmailLogStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	if s.db == nil {
		return ErrUnavailable
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE email_logs SET status = 'failed', error_message = $2 WHERE id = $1
	`, id, errMsg)
	return classify("mark email failed", err)
}

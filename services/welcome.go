package services

import (
	"context"
	"fmt"
	"time"

	"kaizen/logging"
	"kaizen/models"
)

const DefaultWelcomeBatch = 10

type EmailLogRepository interface {
	ListPending(ctx context.Context, emailType string, limit int) ([]models.EmailLog, error)
	MarkSent(ctx context.Context, id string, metadata map[string]interface{}) error
	MarkFailed(ctx context.Context, id, errMsg string) error
}

type DispatchResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Email  string `json:"email,omitempty"`
	Error  string `json:"error,omitempty"`
}

type DispatchReport struct {
	Message string           `json:"message"`
	Results []DispatchResult `json:"results"`
}

// WelcomeDispatcher drains the pending welcome-email queue one batch at a time.
type WelcomeDispatcher struct {
	logs   EmailLogRepository
	mailer Mailer
	batch  int
	log    *logging.Logger
	now    func() time.Time
}

func NewWelcomeDispatcher(logs EmailLogRepository, mailer Mailer, batch int, log *logging.Logger) *WelcomeDispatcher {
	if batch <= 0 {
		batch = DefaultWelcomeBatch
	}
	if log == nil {
		log = logging.GetGlobalLogger()
	}
	return &WelcomeDispatcher{
		logs:   logs,
		mailer: mailer,
		batch:  batch,
		log:    log.WithField("component", "welcome_dispatcher"),
		now:    time.Now,
	}
}

// Run sends one batch sequentially. A failed send marks its row failed and
// moves on; only a failure to read the queue is returned as an error.
func (d *WelcomeDispatcher) Run(ctx context.Context) (*DispatchReport, error) {
	if d.logs == nil {
		return nil, fmt.Errorf("failed to fetch pending emails: %s", MsgUnavailable)
	}

	pending, err := d.logs.ListPending(ctx, models.EmailTypeWelcome, d.batch)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending emails: %w", err)
	}
	if len(pending) == 0 {
		return &DispatchReport{Message: "No pending emails to send", Results: []DispatchResult{}}, nil
	}

	results := make([]DispatchResult, 0, len(pending))
	for _, row := range pending {
		results = append(results, d.deliver(ctx, row))
	}

	return &DispatchReport{
		Message: fmt.Sprintf("Processed %d emails", len(results)),
		Results: results,
	}, nil
}

func (d *WelcomeDispatcher) deliver(ctx context.Context, row models.EmailLog) DispatchResult {
	log := d.log.WithField("email_log_id", row.ID)

	sendErr := d.send(ctx, row.Email)
	if sendErr != nil {
		if err := d.logs.MarkFailed(ctx, row.ID, sendErr.Error()); err != nil {
			log.WithError(err).Error("failed to mark email failed")
		}
		log.WithError(sendErr).Warn("welcome email failed")
		return DispatchResult{ID: row.ID, Status: models.EmailStatusFailed, Error: sendErr.Error()}
	}

	meta := map[string]interface{}{"sent_at": d.now().UTC().Format(time.RFC3339)}
	if err := d.logs.MarkSent(ctx, row.ID, meta); err != nil {
		log.WithError(err).Error("failed to mark email sent")
	}
	return DispatchResult{ID: row.ID, Status: models.EmailStatusSent, Email: row.Email}
}

func (d *WelcomeDispatcher) send(ctx context.Context, to string) (err error) {
	if d.mailer == nil {
		return fmt.Errorf("no mailer configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mailer panic: %v", r)
		}
	}()
	return d.mailer.SendWelcome(ctx, to)
}

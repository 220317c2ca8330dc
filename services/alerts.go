package services

import (
	"context"
	"fmt"
	"time"
)

// AlertSender delivers an operator-facing message.
type AlertSender interface {
	Notify(ctx context.Context, text string) error
}

const alertTimeout = 10 * time.Second

// BillingAlertText renders the operator message for an outcome, or reports
// false when the outcome is not worth an alert.
func BillingAlertText(out Outcome) (string, bool) {
	if out.Err != nil || out.Duplicate || out.RowsAffected == 0 {
		return "", false
	}

	var title string
	switch out.Action {
	case ActionUpgraded:
		title = "💳 New Pro subscriber"
	case ActionDowngraded:
		title = "📉 Subscription cancelled"
	case ActionPaymentFailed:
		title = "🚨 Payment failed"
	default:
		return "", false
	}
	return fmt.Sprintf("%s\n\nEvent: %s\nType: %s\nSubscribers updated: %d",
		title, out.EventID, out.Type, out.RowsAffected), true
}

// alert sends the outcome's message in the background. Send failures and
// panics are logged and never reach the webhook response.
func (s *TierSync) alert(out Outcome) {
	if s.alerts == nil {
		return
	}
	text, ok := BillingAlertText(out)
	if !ok {
		return
	}

	go func() {
		log := s.log.WithFields(map[string]interface{}{"event_id": out.EventID, "action": out.Action})
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("billing alert panic recovered: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()
		if err := s.alerts.Notify(ctx, text); err != nil {
			log.WithError(err).Warn("failed to send billing alert")
			return
		}
		log.Debug("billing alert sent")
	}()
}

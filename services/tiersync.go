package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kaizen/logging"
	"kaizen/models"

	"github.com/stripe/stripe-go/v76"
)

const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventSubscriptionCreated   = "customer.subscription.created"
	EventSubscriptionUpdated   = "customer.subscription.updated"
	EventSubscriptionDeleted   = "customer.subscription.deleted"
	EventInvoicePaymentSuccess = "invoice.payment_succeeded"
	EventInvoicePaymentFailed  = "invoice.payment_failed"
)

const (
	ActionUpgraded        = "upgraded"
	ActionSubscriptionSet = "subscription_updated"
	ActionDowngraded      = "downgraded"
	ActionPaymentRecorded = "payment_recorded"
	ActionPaymentFailed   = "payment_failure_recorded"
	ActionIgnored         = "ignored"
	ActionSkipped         = "skipped"
)

type TierStore interface {
	UpsertPro(ctx context.Context, email, customerID string, metadata map[string]interface{}) (int64, error)
	SetTierByCustomerID(ctx context.Context, customerID string, tier models.Tier, metadata map[string]interface{}) (int64, error)
	MergeMetadataByCustomerID(ctx context.Context, customerID string, metadata map[string]interface{}) (int64, error)
}

type EventLedger interface {
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Outcome describes what Process did with one event.
type Outcome struct {
	EventID      string
	Type         string
	Action       string
	RowsAffected int64
	Duplicate    bool
	Err          error
}

// TierSync applies verified Stripe events to subscriber tiers.
type TierSync struct {
	subscribers TierStore
	ledger      EventLedger
	alerts      AlertSender
	log         *logging.Logger
	now         func() time.Time
}

// NewTierSync builds the event processor. ledger may be nil.
func NewTierSync(subscribers TierStore, ledger EventLedger, log *logging.Logger) *TierSync {
	if log == nil {
		log = logging.GetGlobalLogger()
	}
	return &TierSync{
		subscribers: subscribers,
		ledger:      ledger,
		log:         log.WithField("component", "tier_sync"),
		now:         time.Now,
	}
}

// WithAlerts sends a message to a for upgrades, cancellations and failed payments.
func (s *TierSync) WithAlerts(a AlertSender) *TierSync {
	s.alerts = a
	return s
}

// Process handles one event. Failures are logged and returned in the Outcome,
// never as a panic; the caller acknowledges the event either way.
func (s *TierSync) Process(ctx context.Context, event stripe.Event) Outcome {
	out := Outcome{EventID: event.ID, Type: string(event.Type)}
	log := s.log.WithFields(map[string]interface{}{"event_id": event.ID, "event_type": out.Type})

	if s.ledger != nil && event.ID != "" {
		fresh, err := s.ledger.MarkProcessed(ctx, event.ID)
		if err != nil {
			log.WithError(err).Warn("event ledger unavailable, processing anyway")
		} else if !fresh {
			out.Duplicate = true
			out.Action = ActionIgnored
			log.Info("duplicate event ignored")
			return out
		}
	}

	if s.subscribers == nil {
		out.Err = errors.New(MsgUnavailable)
	} else {
		out.Action, out.RowsAffected, out.Err = s.dispatch(ctx, event)
	}

	switch {
	case out.Err != nil:
		log.WithError(out.Err).Error("failed to process stripe event")
		// The webhook still answers 200, so Stripe will not retry; releasing
		// the id lets a manual resend from the dashboard apply the event.
		if s.ledger != nil && event.ID != "" {
			if err := s.ledger.Forget(ctx, event.ID); err != nil {
				log.WithError(err).Warn("failed to release event id")
			}
		}
	case out.Action == ActionIgnored:
		log.Info("unhandled event type")
	default:
		log.WithFields(map[string]interface{}{
			"action":        out.Action,
			"rows_affected": out.RowsAffected,
		}).Info("stripe event processed")
		s.alert(out)
	}
	return out
}

func (s *TierSync) dispatch(ctx context.Context, event stripe.Event) (string, int64, error) {
	if event.Data == nil {
		return ActionSkipped, 0, errors.New("event has no data object")
	}
	raw := event.Data.Raw
	stamp := s.now().UTC().Format(time.RFC3339)

	switch string(event.Type) {
	case EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(raw, &session); err != nil {
			return ActionSkipped, 0, fmt.Errorf("failed to decode checkout session: %w", err)
		}
		email := session.CustomerEmail
		if email == "" && session.CustomerDetails != nil {
			email = session.CustomerDetails.Email
		}
		if email == "" {
			return ActionSkipped, 0, errors.New("no customer email in checkout session")
		}
		n, err := s.subscribers.UpsertPro(ctx, email, customerID(session.Customer), map[string]interface{}{
			"stripe_session_id": session.ID,
			"upgraded_at":       stamp,
		})
		return ActionUpgraded, n, err

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return ActionSkipped, 0, fmt.Errorf("failed to decode subscription: %w", err)
		}
		customer := customerID(sub.Customer)
		if customer == "" {
			return ActionSkipped, 0, errors.New("no customer on subscription")
		}
		tier, status, action := models.TierPro, "active", ActionSubscriptionSet
		if string(event.Type) == EventSubscriptionDeleted {
			tier, status, action = models.TierFree, "cancelled", ActionDowngraded
		}
		n, err := s.subscribers.SetTierByCustomerID(ctx, customer, tier, map[string]interface{}{
			"subscription_id":     sub.ID,
			"subscription_status": status,
			"stripe_status":       string(sub.Status),
			"updated_at":          stamp,
		})
		return action, n, err

	case EventInvoicePaymentSuccess:
		invoice, customer, err := decodeInvoice(raw)
		if err != nil {
			return ActionSkipped, 0, err
		}
		n, err := s.subscribers.SetTierByCustomerID(ctx, customer, models.TierPro, map[string]interface{}{
			"last_payment_at": stamp,
			"last_invoice_id": invoice.ID,
		})
		return ActionPaymentRecorded, n, err

	case EventInvoicePaymentFailed:
		// Tier is left alone; whether to downgrade after a grace period is undecided.
		invoice, customer, err := decodeInvoice(raw)
		if err != nil {
			return ActionSkipped, 0, err
		}
		n, err := s.subscribers.MergeMetadataByCustomerID(ctx, customer, map[string]interface{}{
			"payment_failed_at": stamp,
			"failed_invoice_id": invoice.ID,
		})
		return ActionPaymentFailed, n, err

	default:
		return ActionIgnored, 0, nil
	}
}

func decodeInvoice(raw json.RawMessage) (*stripe.Invoice, string, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return nil, "", fmt.Errorf("failed to decode invoice: %w", err)
	}
	customer := customerID(invoice.Customer)
	if customer == "" {
		return nil, "", errors.New("no customer on invoice")
	}
	return &invoice, customer, nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

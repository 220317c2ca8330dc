package services

import (
	"context"
	"errors"
	"net/mail"

	"kaizen/analytics"
	"kaizen/logging"
	"kaizen/models"
	"kaizen/store"
)

const (
	MsgUnavailable       = "Database connection not available"
	MsgAlreadySubscribed = "This email is already subscribed!"
	MsgSubscribeFailed   = "Failed to subscribe. Please try again."
	MsgInvalidSubscriber = "Please enter a valid email address."
	EventEmailSignup     = "email_signup"
)

type SubscribeStatus int

const (
	SubscribeOK SubscribeStatus = iota
	SubscribeInvalid
	SubscribeConflict
	SubscribeUnavailable
	SubscribeFailed
)

type SubscribeResult struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Status  SubscribeStatus `json:"-"`
}

type SubscriberInserter interface {
	Insert(ctx context.Context, email string) (*models.Subscriber, error)
}

type EmailQueue interface {
	Enqueue(ctx context.Context, email, emailType string, metadata map[string]interface{}) error
}

type EventTracker interface {
	TrackEvent(name string, data map[string]interface{}, userAgent string)
}

// SubscriberService handles newsletter sign-ups from the subscribe form.
type SubscriberService struct {
	subscribers SubscriberInserter
	queue       EmailQueue
	tracker     EventTracker
	log         *logging.Logger
}

// NewSubscriberService wires the sign-up flow. queue and tracker may be nil.
func NewSubscriberService(subscribers SubscriberInserter, queue EmailQueue, tracker EventTracker, log *logging.Logger) *SubscriberService {
	if log == nil {
		log = logging.GetGlobalLogger()
	}
	return &SubscriberService{
		subscribers: subscribers,
		queue:       queue,
		tracker:     tracker,
		log:         log.WithField("component", "subscribe"),
	}
}

// Subscribe stores a free-tier subscriber. The tier is always free here;
// upgrades only arrive through billing.
func (s *SubscriberService) Subscribe(ctx context.Context, email string) SubscribeResult {
	if s.subscribers == nil {
		return SubscribeResult{Error: MsgUnavailable, Status: SubscribeUnavailable}
	}

	email = store.NormalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return SubscribeResult{Error: MsgInvalidSubscriber, Status: SubscribeInvalid}
	}

	sub, err := s.subscribers.Insert(ctx, email)
	switch {
	case errors.Is(err, store.ErrConflict):
		return SubscribeResult{Error: MsgAlreadySubscribed, Status: SubscribeConflict}
	case errors.Is(err, store.ErrUnavailable):
		return SubscribeResult{Error: MsgUnavailable, Status: SubscribeUnavailable}
	case err != nil:
		s.log.WithError(err).Error("subscribe insert failed")
		return SubscribeResult{Error: MsgSubscribeFailed, Status: SubscribeFailed}
	}

	if s.tracker != nil {
		s.tracker.TrackEvent(EventEmailSignup, map[string]interface{}{"tier": string(models.TierFree)}, analytics.UserAgent(ctx))
	}
	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, sub.Email, models.EmailTypeWelcome, map[string]interface{}{"subscriber_id": sub.ID}); err != nil {
			s.log.WithError(err).WithField("subscriber_id", sub.ID).Warn("failed to queue welcome email")
		}
	}

	return SubscribeResult{Success: true, Status: SubscribeOK}
}

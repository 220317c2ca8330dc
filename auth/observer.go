package auth

import (
	"context"
	"time"

	"kaizen/logging"
)

type EventKind string

const (
	EventSignedUp         EventKind = "signed_up"
	EventSignedIn         EventKind = "signed_in"
	EventSignedOut        EventKind = "signed_out"
	EventPasswordRecovery EventKind = "password_recovery"
	EventPasswordUpdated  EventKind = "password_updated"
)

type SessionEvent struct {
	Kind    EventKind
	Session *Session
	At      time.Time
}

// Observer is notified after every session change made by the Controller.
type Observer interface {
	SessionChanged(ctx context.Context, ev SessionEvent)
}

type ObserverFunc func(ctx context.Context, ev SessionEvent)

func (f ObserverFunc) SessionChanged(ctx context.Context, ev SessionEvent) {
	f(ctx, ev)
}

// EventTracker is the subset of the analytics tracker used by AnalyticsObserver.
type EventTracker interface {
	TrackEvent(name string, data map[string]interface{}, userAgent string)
}

// AnalyticsObserver records each session change as an "auth_<kind>" event.
func AnalyticsObserver(tracker EventTracker) Observer {
	return ObserverFunc(func(_ context.Context, ev SessionEvent) {
		tracker.TrackEvent("auth_"+string(ev.Kind), map[string]interface{}{
			"tier": string(ev.Session.Tier()),
		}, "")
	})
}

func LoggingObserver(log *logging.Logger) Observer {
	return ObserverFunc(func(_ context.Context, ev SessionEvent) {
		entry := log.WithField("event", string(ev.Kind))
		if ev.Session != nil {
			entry = entry.WithField("user_id", ev.Session.UserID)
		}
		entry.Info("session changed")
	})
}

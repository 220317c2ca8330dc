package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	eventPrefix     = "kaizen:stripe:event:"
	defaultEventTTL = 72 * time.Hour
)

// EventLedger remembers processed webhook event ids.
type EventLedger struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewEventLedger keeps ids for ttl, or 72h when ttl is not positive.
func NewEventLedger(client redis.Cmdable, ttl time.Duration) *EventLedger {
	if ttl <= 0 {
		ttl = defaultEventTTL
	}
	return &EventLedger{client: client, ttl: ttl}
}

// MarkProcessed records the event id and reports whether it was new.
func (l *EventLedger) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	return l.client.SetNX(ctx, eventPrefix+eventID, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
}

// Forget drops an event id so a manual resend of the event is processed again.
func (l *EventLedger) Forget(ctx context.Context, eventID string) error {
	return l.client.Del(ctx, eventPrefix+eventID).Err()
}

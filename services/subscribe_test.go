package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"kaizen/analytics"
	"kaizen/models"
	"kaizen/store"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe_Success(t *testing.T) {
	subs := newMemorySubscribers()
	queue := &memoryQueue{}
	tracker := &memoryTracker{}
	log, _ := testLogger()
	svc := NewSubscriberService(subs, queue, tracker, log)

	ctx := analytics.WithUserAgent(context.Background(), "Mozilla/5.0")
	res := svc.Subscribe(ctx, "  New.Reader@Example.com ")

	assert.Equal(t, SubscribeResult{Success: true, Status: SubscribeOK}, res)
	sub := subs.get("new.reader@example.com")
	require.NotNil(t, sub)
	assert.Equal(t, models.TierFree, sub.Tier)

	require.Len(t, tracker.events, 1)
	assert.Equal(t, EventEmailSignup, tracker.events[0].name)
	assert.Equal(t, "free", tracker.events[0].data["tier"])
	assert.Equal(t, "Mozilla/5.0", tracker.events[0].ua)

	assert.Equal(t, []queuedEmail{{"new.reader@example.com", models.EmailTypeWelcome}}, queue.queued)
}

func TestSubscribe_Errors(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		insertErr  error
		wantStatus SubscribeStatus
		wantMsg    string
	}{
		{"invalid email", "not-an-email", nil, SubscribeInvalid, MsgInvalidSubscriber},
		{"display name form", "Reader <r@example.com>", nil, SubscribeInvalid, MsgInvalidSubscriber},
		{"unavailable", "a@example.com", store.ErrUnavailable, SubscribeUnavailable, MsgUnavailable},
		{"driver error", "a@example.com", errors.New("pq: connection refused"), SubscribeFailed, MsgSubscribeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := newMemorySubscribers()
			subs.err = tt.insertErr
			tracker := &memoryTracker{}
			svc := NewSubscriberService(subs, &memoryQueue{}, tracker, nil)

			res := svc.Subscribe(context.Background(), tt.email)
			assert.False(t, res.Success)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantMsg, res.Error)
			assert.Empty(t, tracker.events)
		})
	}
}

func TestSubscribe_NoStore(t *testing.T) {
	svc := NewSubscriberService(nil, nil, nil, nil)
	res := svc.Subscribe(context.Background(), "a@example.com")
	assert.Equal(t, SubscribeUnavailable, res.Status)
	assert.Equal(t, MsgUnavailable, res.Error)
}

func TestSubscribe_QueueFailureIsNotSurfaced(t *testing.T) {
	log, buf := testLogger()
	svc := NewSubscriberService(newMemorySubscribers(), &memoryQueue{err: errBoom}, nil, log)

	res := svc.Subscribe(context.Background(), "a@example.com")
	assert.True(t, res.Success)
	assert.Contains(t, buf.String(), "failed to queue welcome email")
}

func TestSubscribe_ExistingEmailAlwaysReportsAlreadySubscribed(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("second subscribe for any casing is a conflict", prop.ForAll(
		func(local string, upper bool) bool {
			subs := newMemorySubscribers()
			svc := NewSubscriberService(subs, nil, nil, nil)
			email := local + "@example.com"

			if !svc.Subscribe(context.Background(), email).Success {
				return false
			}
			again := " " + email + " "
			if upper {
				again = strings.ToUpper(email)
			}
			res := svc.Subscribe(context.Background(), again)
			return res.Error == MsgAlreadySubscribed && res.Status == SubscribeConflict && subs.count() == 1
		},
		gen.Identifier(), gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

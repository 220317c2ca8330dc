package services

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"kaizen/logging"
	"kaizen/models"
	"kaizen/store"
)

func testLogger() (*logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logging.New(logging.LevelDebug, logging.FormatJSON, &buf), &buf
}

// memorySubscribers mimics the subscribers table closely enough for the
// email-unique and customer-scoped update semantics.
type memorySubscribers struct {
	mu   sync.Mutex
	rows map[string]*models.Subscriber
	err  error
}

func newMemorySubscribers() *memorySubscribers {
	return &memorySubscribers{rows: map[string]*models.Subscriber{}}
}

func (m *memorySubscribers) Insert(_ context.Context, email string) (*models.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	email = store.NormalizeEmail(email)
	if _, exists := m.rows[email]; exists {
		return nil, store.ErrConflict
	}
	sub := &models.Subscriber{ID: "sub-" + email, Email: email, Tier: models.TierFree, Metadata: map[string]interface{}{}}
	m.rows[email] = sub
	return sub, nil
}

func (m *memorySubscribers) UpsertPro(_ context.Context, email, customerID string, metadata map[string]interface{}) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	email = store.NormalizeEmail(email)
	sub, exists := m.rows[email]
	if !exists {
		sub = &models.Subscriber{ID: "sub-" + email, Email: email, Metadata: map[string]interface{}{}}
		m.rows[email] = sub
	}
	sub.Tier = models.TierPro
	if customerID != "" {
		sub.StripeCustomerID = customerID
	}
	for k, v := range metadata {
		sub.Metadata[k] = v
	}
	return 1, nil
}

func (m *memorySubscribers) SetTierByCustomerID(_ context.Context, customerID string, tier models.Tier, metadata map[string]interface{}) (int64, error) {
	return m.updateByCustomer(customerID, func(sub *models.Subscriber) {
		sub.Tier = tier
		for k, v := range metadata {
			sub.Metadata[k] = v
		}
	})
}

func (m *memorySubscribers) MergeMetadataByCustomerID(_ context.Context, customerID string, metadata map[string]interface{}) (int64, error) {
	return m.updateByCustomer(customerID, func(sub *models.Subscriber) {
		for k, v := range metadata {
			sub.Metadata[k] = v
		}
	})
}

func (m *memorySubscribers) updateByCustomer(customerID string, apply func(*models.Subscriber)) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, sub := range m.rows {
		if sub.StripeCustomerID == customerID {
			apply(sub)
			n++
		}
	}
	return n, nil
}

func (m *memorySubscribers) get(email string) *models.Subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[email]
}

func (m *memorySubscribers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type queuedEmail struct {
	email, emailType string
}

type memoryQueue struct {
	mu     sync.Mutex
	queued []queuedEmail
	err    error
}

func (q *memoryQueue) Enqueue(_ context.Context, email, emailType string, _ map[string]interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.queued = append(q.queued, queuedEmail{email, emailType})
	return nil
}

type trackedEvent struct {
	name string
	data map[string]interface{}
	ua   string
}

type memoryTracker struct {
	mu     sync.Mutex
	events []trackedEvent
}

func (t *memoryTracker) TrackEvent(name string, data map[string]interface{}, ua string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, trackedEvent{name, data, ua})
}

var errBoom = errors.New("boom")

// Package analytics records page views and named events without blocking the caller.
package analytics

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"kaizen/logging"
	"kaizen/models"
)

// Sink persists one page view.
type Sink interface {
	RecordPageView(ctx context.Context, pv models.PageView) error
}

// Tracker fans each record out to its sinks in the background. A nil Tracker
// drops everything.
type Tracker struct {
	sinks   []Sink
	timeout time.Duration
	log     *logging.Logger
	wg      sync.WaitGroup
}

func NewTracker(log *logging.Logger, timeout time.Duration, sinks ...Sink) *Tracker {
	if log == nil {
		log = logging.GetGlobalLogger()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Tracker{sinks: sinks, timeout: timeout, log: log.WithField("component", "analytics")}
}

func (t *Tracker) TrackPageView(path, referrer, userAgent string) {
	if t == nil {
		return
	}
	t.record(models.PageView{
		PagePath:  path,
		ViewedAt:  time.Now().UTC(),
		Referrer:  referrer,
		UserAgent: userAgent,
	})
}

// TrackEvent stores a named event as a page view whose path is "event:<name>"
// and whose referrer carries the JSON-encoded data.
func (t *Tracker) TrackEvent(name string, data map[string]interface{}, userAgent string) {
	if t == nil {
		return
	}
	payload := "{}"
	if len(data) > 0 {
		if b, err := json.Marshal(data); err == nil {
			payload = string(b)
		}
	}
	t.record(models.PageView{
		PagePath:  models.EventPathPrefix + name,
		ViewedAt:  time.Now().UTC(),
		Referrer:  payload,
		UserAgent: userAgent,
	})
}

func (t *Tracker) record(pv models.PageView) {
	for _, sink := range t.sinks {
		t.wg.Add(1)
		go func(s Sink) {
			defer t.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					t.log.WithField("panic", r).Error("analytics sink panic")
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
			defer cancel()

			if err := s.RecordPageView(ctx, pv); err != nil {
				t.log.WithError(err).WithField("page_path", pv.PagePath).Debug("analytics record failed")
			}
		}(sink)
	}
}

// Wait blocks until in-flight records finish. Used on shutdown and in tests.
func (t *Tracker) Wait() {
	if t == nil {
		return
	}
	t.wg.Wait()
}

type userAgentKey struct{}

// WithUserAgent stores the request user agent for events raised deeper in the call chain.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, ua)
}

func UserAgent(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ua, _ := ctx.Value(userAgentKey{}).(string)
	return ua
}

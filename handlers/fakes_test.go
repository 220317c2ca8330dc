package handlers

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"kaizen/auth"
	"kaizen/logging"
	"kaizen/models"
	"kaizen/services"
	"kaizen/store"
)

var errBoom = errors.New("boom")

func testLogger() *logging.Logger {
	return logging.New(logging.LevelDebug, logging.FormatJSON, &bytes.Buffer{})
}

type memoryContent struct {
	issues     []models.NewsletterIssue
	techniques []models.Technique
	err        error
}

func (m *memoryContent) ListIssues(_ context.Context, limit int) ([]models.NewsletterIssue, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := append([]models.NewsletterIssue(nil), m.issues...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryContent) GetIssue(_ context.Context, id string) (*models.NewsletterIssue, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, issue := range m.issues {
		if issue.ID == id {
			issue := issue
			return &issue, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memoryContent) ListTechniques(_ context.Context, f store.TechniqueFilters) ([]models.Technique, error) {
	if m.err != nil {
		return nil, m.err
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var out []models.Technique
	for _, t := range m.techniques {
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.Tier != "" && string(t.TierRequired) != f.Tier {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Name+" "+t.Summary), search) {
			continue
		}
		out = append(out, t)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memoryContent) GetTechnique(_ context.Context, id string) (*models.Technique, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, t := range m.techniques {
		if t.ID == id {
			t := t
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

func sampleContent() *memoryContent {
	published := time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)
	return &memoryContent{
		issues: []models.NewsletterIssue{
			{ID: "issue-2", Title: "Prompt Chaining in Practice", IssueNumber: 2, PublishDate: published, ContentMD: "# Pro body", TierRequired: models.TierPro},
			{ID: "issue-1", Title: "Welcome to kAIzen", IssueNumber: 1, PublishDate: published.AddDate(0, 0, -7), Summary: "Kickoff", ContentMD: "# Hello\n\nFree body", TierRequired: models.TierFree},
		},
		techniques: []models.Technique{
			{
				ID: "tech-1", Name: "Self-Critique Loop", Version: "v1.2", Category: "prompting", Summary: "Ask the model to review itself",
				TierRequired: models.TierFree,
				FullSpec: map[string]interface{}{
					"metrics": map[string]interface{}{
						"expected_improvements": map[string]interface{}{
							"accuracy": map[string]interface{}{"value": "+12%"},
						},
					},
				},
			},
			{ID: "tech-2", Name: "Planner Executor", Version: "v2.0", Category: "orchestration", Summary: "Split planning from doing", TierRequired: models.TierPro, FullSpec: map[string]interface{}{"steps": 3}},
		},
	}
}

type memorySubscribers struct {
	mu   sync.Mutex
	rows map[string]bool
}

func (m *memorySubscribers) Insert(_ context.Context, email string) (*models.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[string]bool{}
	}
	email = store.NormalizeEmail(email)
	if m.rows[email] {
		return nil, store.ErrConflict
	}
	m.rows[email] = true
	return &models.Subscriber{ID: "sub-" + email, Email: email, Tier: models.TierFree}, nil
}

type tierCall struct {
	Op       string
	Key      string
	Tier     models.Tier
	Metadata map[string]interface{}
}

// recordingTiers captures tier mutations so webhook tests can assert that
// rejected requests changed nothing.
type recordingTiers struct {
	mu    sync.Mutex
	calls []tierCall
	err   error
}

func (r *recordingTiers) record(c tierCall) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	if r.err != nil {
		return 0, r.err
	}
	return 1, nil
}

func (r *recordingTiers) UpsertPro(_ context.Context, email, _ string, metadata map[string]interface{}) (int64, error) {
	return r.record(tierCall{Op: "upsert_pro", Key: email, Tier: models.TierPro, Metadata: metadata})
}

func (r *recordingTiers) SetTierByCustomerID(_ context.Context, customerID string, tier models.Tier, metadata map[string]interface{}) (int64, error) {
	return r.record(tierCall{Op: "set_tier", Key: customerID, Tier: tier, Metadata: metadata})
}

func (r *recordingTiers) MergeMetadataByCustomerID(_ context.Context, customerID string, metadata map[string]interface{}) (int64, error) {
	return r.record(tierCall{Op: "merge_metadata", Key: customerID, Metadata: metadata})
}

func (r *recordingTiers) Calls() []tierCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tierCall(nil), r.calls...)
}

// staticSessions resolves fixed bearer tokens.
type staticSessions map[string]*auth.Session

func (s staticSessions) Resolve(_ context.Context, token string) (*auth.Session, error) {
	if sess, ok := s[token]; ok {
		return sess, nil
	}
	return nil, errors.New("invalid token")
}

type fakeAccounts struct {
	signUp    auth.Result
	signIn    *auth.Session
	signInRes auth.Result
	signedOut []*auth.Session
	passwords []string
}

func (f *fakeAccounts) SignUp(context.Context, string, string) auth.Result { return f.signUp }

func (f *fakeAccounts) SignIn(context.Context, string, string) (*auth.Session, auth.Result) {
	return f.signIn, f.signInRes
}

func (f *fakeAccounts) SignOut(_ context.Context, s *auth.Session) auth.Result {
	f.signedOut = append(f.signedOut, s)
	return auth.Result{Success: true}
}

func (f *fakeAccounts) ResetPassword(context.Context, string) auth.Result {
	return auth.Result{Success: true}
}

func (f *fakeAccounts) Recover(_ context.Context, token string) (*auth.Session, auth.Result) {
	if token != "reset-ok" {
		return nil, auth.Result{Error: auth.MsgInvalidResetLink}
	}
	s := &auth.Session{UserID: "u-1", Email: "reader@example.com", Token: "recovered", ExpiresAt: time.Now().Add(time.Hour), Recovery: true}
	return s, auth.Result{Success: true}
}

func (f *fakeAccounts) UpdatePassword(_ context.Context, s *auth.Session, pw string) auth.Result {
	if !s.IsAuthenticated() {
		return auth.Result{Error: auth.MsgNotAuthenticated}
	}
	if len(pw) < auth.MinPasswordLength {
		return auth.Result{Error: auth.MsgWeakPassword}
	}
	f.passwords = append(f.passwords, pw)
	return auth.Result{Success: true}
}

type fakeDispatcher struct {
	report *services.DispatchReport
	err    error
	runs   int
}

func (f *fakeDispatcher) Run(context.Context) (*services.DispatchReport, error) {
	f.runs++
	return f.report, f.err
}

type recordedEvent struct {
	Name string
	Data map[string]interface{}
	UA   string
}

type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEvents) TrackEvent(name string, data map[string]interface{}, ua string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{name, data, ua})
}

func (r *recordingEvents) Events() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

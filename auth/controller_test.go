package auth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"kaizen/logging"
	"kaizen/models"
	"kaizen/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUsers struct {
	mu       sync.Mutex
	byEmail  map[string]*models.User
	resets   map[string]resetRow
	failWith error
}

type resetRow struct {
	userID    string
	expiresAt time.Time
	used      bool
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]*models.User{}, resets: map[string]resetRow{}}
}

func (f *fakeUsers) Create(_ context.Context, email, hash string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	if _, exists := f.byEmail[email]; exists {
		return nil, store.ErrConflict
	}
	u := &models.User{ID: "user-" + email, Email: email, PasswordHash: hash}
	f.byEmail[email] = u
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, exists := f.byEmail[store.NormalizeEmail(email)]
	if !exists {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			u.PasswordHash = hash
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeUsers) CreateReset(_ context.Context, tokenHash, userID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets[tokenHash] = resetRow{userID: userID, expiresAt: expiresAt}
	return nil
}

func (f *fakeUsers) ConsumeReset(_ context.Context, tokenHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, exists := f.resets[tokenHash]
	if !exists || r.used || time.Now().After(r.expiresAt) {
		return "", store.ErrNotFound
	}
	r.used = true
	f.resets[tokenHash] = r
	return r.userID, nil
}

type fakeSubscribers struct {
	tiers   map[string]models.Tier
	linked  map[string]string
	tierErr error
}

func (f *fakeSubscribers) TierByUserID(_ context.Context, userID string) (models.Tier, error) {
	if f.tierErr != nil {
		return "", f.tierErr
	}
	tier, exists := f.tiers[userID]
	if !exists {
		return "", store.ErrNotFound
	}
	return tier, nil
}

func (f *fakeSubscribers) LinkUser(_ context.Context, email, userID string) error {
	if f.linked == nil {
		f.linked = map[string]string{}
	}
	f.linked[email] = userID
	return nil
}

type fakeRevoker struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevoker) Revoke(_ context.Context, id string, _ time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.revoked[id] = true
	return nil
}

func (f *fakeRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	return f.revoked[id], f.err
}

type fakeMailer struct {
	to, link string
	err      error
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, email, link string) error {
	f.to, f.link = email, link
	return f.err
}

type recorder struct {
	mu     sync.Mutex
	events []EventKind
}

func (r *recorder) SessionChanged(_ context.Context, ev SessionEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev.Kind)
	r.mu.Unlock()
}

type fixture struct {
	ctrl    *Controller
	users   *fakeUsers
	subs    *fakeSubscribers
	revoker *fakeRevoker
	mailer  *fakeMailer
	events  *recorder
	logs    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:   newFakeUsers(),
		subs:    &fakeSubscribers{tiers: map[string]models.Tier{}},
		revoker: &fakeRevoker{revoked: map[string]bool{}},
		mailer:  &fakeMailer{},
		events:  &recorder{},
		logs:    &bytes.Buffer{},
	}
	f.ctrl = NewController(Options{
		Users:       f.users,
		Subscribers: f.subs,
		Tokens:      NewTokenIssuer("test-secret", time.Hour),
		Revoker:     f.revoker,
		Mailer:      f.mailer,
		BaseURL:     "https://kaizen.test/",
		Logger:      logging.New(logging.LevelDebug, logging.FormatJSON, f.logs),
	})
	f.ctrl.Subscribe(f.events)
	return f
}

func (f *fixture) addUser(t *testing.T, email, password string, tier models.Tier) *models.User {
	t.Helper()
	require.True(t, f.ctrl.SignUp(context.Background(), email, password).Success)
	u, err := f.users.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	if tier != "" {
		f.subs.tiers[u.ID] = tier
	}
	return u
}

func TestSignUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.ctrl.SignUp(ctx, " Reader@Example.com ", "correct horse")
	require.True(t, res.Success)

	u, err := f.users.GetByEmail(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("correct horse")))
	assert.Equal(t, u.ID, f.subs.linked["reader@example.com"])
	assert.Equal(t, []EventKind{EventSignedUp}, f.events.events)

	assert.Equal(t, Result{Error: MsgUserExists}, f.ctrl.SignUp(ctx, "reader@example.com", "another password"))
	assert.Equal(t, Result{Error: MsgWeakPassword}, f.ctrl.SignUp(ctx, "new@example.com", "short"))
	assert.Equal(t, Result{Error: MsgInvalidEmail}, f.ctrl.SignUp(ctx, "not-an-email", "long enough"))
}

func TestSignUp_BackendErrorsAreNormalised(t *testing.T) {
	f := newFixture(t)
	f.users.failWith = errors.New(`pq: relation "users" does not exist`)

	res := f.ctrl.SignUp(context.Background(), "a@example.com", "long enough")
	assert.Equal(t, Result{Error: MsgUnexpected}, res)
	assert.Contains(t, f.logs.String(), "relation")

	f.users.failWith = store.ErrUnavailable
	res = f.ctrl.SignUp(context.Background(), "a@example.com", "long enough")
	assert.Equal(t, Result{Error: MsgUnavailable}, res)
}

func TestController_Unconfigured(t *testing.T) {
	c := NewController(Options{})
	ctx := context.Background()

	assert.Equal(t, MsgUnavailable, c.SignUp(ctx, "a@example.com", "long enough").Error)
	_, res := c.SignIn(ctx, "a@example.com", "long enough")
	assert.Equal(t, MsgUnavailable, res.Error)
	assert.Equal(t, MsgUnavailable, c.ResetPassword(ctx, "a@example.com").Error)
}

func TestSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.addUser(t, "pro@example.com", "long enough", models.TierPro)

	_, res := f.ctrl.SignIn(ctx, "pro@example.com", "wrong password")
	assert.Equal(t, Result{Error: MsgInvalidCredentials}, res)

	_, res = f.ctrl.SignIn(ctx, "nobody@example.com", "long enough")
	assert.Equal(t, Result{Error: MsgInvalidCredentials}, res)

	s, res := f.ctrl.SignIn(ctx, "pro@example.com", "long enough")
	require.True(t, res.Success)
	assert.Equal(t, u.ID, s.UserID)
	assert.NotEmpty(t, s.Token)
	assert.NotEmpty(t, s.TokenID)
	assert.True(t, s.HasProAccess())
	assert.True(t, s.CanAccessContent(models.TierPro))
	assert.Contains(t, f.events.events, EventSignedIn)
}

func TestSignIn_TierLookupFailureDefaultsToFree(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "pro@example.com", "long enough", models.TierPro)
	f.subs.tierErr = errors.New("timeout")

	s, res := f.ctrl.SignIn(context.Background(), "pro@example.com", "long enough")
	require.True(t, res.Success)
	assert.Equal(t, models.TierFree, s.Tier())
	assert.False(t, s.CanAccessContent(models.TierPro))
	assert.Contains(t, f.logs.String(), "tier lookup failed")
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.addUser(t, "reader@example.com", "long enough", models.TierFree)

	s, res := f.ctrl.SignIn(ctx, "reader@example.com", "long enough")
	require.True(t, res.Success)

	// Tier changes made elsewhere show on the next resolve.
	f.subs.tiers[u.ID] = models.TierPro
	resolved, err := f.ctrl.Resolve(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, models.TierPro, resolved.Tier())
	assert.Equal(t, s.TokenID, resolved.TokenID)

	_, err = f.ctrl.Resolve(ctx, s.Token+"x")
	assert.Error(t, err)

	require.True(t, f.ctrl.SignOut(ctx, resolved).Success)
	_, err = f.ctrl.Resolve(ctx, s.Token)
	assert.Error(t, err)
	assert.Contains(t, f.events.events, EventSignedOut)
}

func TestResolve_DenylistErrorFailsOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "reader@example.com", "long enough", "")

	s, _ := f.ctrl.SignIn(ctx, "reader@example.com", "long enough")
	f.revoker.err = errors.New("redis down")

	resolved, err := f.ctrl.Resolve(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.UserID, resolved.UserID)
}

func TestSignOut_Guest(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.ctrl.SignOut(context.Background(), nil).Success)
	assert.Empty(t, f.events.events)
}

func TestResetPasswordAndRecover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "reader@example.com", "long enough", "")

	require.True(t, f.ctrl.ResetPassword(ctx, "nobody@example.com").Success)
	assert.Empty(t, f.mailer.link)

	require.True(t, f.ctrl.ResetPassword(ctx, "Reader@example.com").Success)
	assert.Equal(t, "reader@example.com", f.mailer.to)
	require.True(t, strings.HasPrefix(f.mailer.link, "https://kaizen.test/account?reset_token="))
	token := strings.TrimPrefix(f.mailer.link, "https://kaizen.test/account?reset_token=")

	s, res := f.ctrl.Recover(ctx, token)
	require.True(t, res.Success)
	assert.True(t, s.Recovery)

	_, res = f.ctrl.Recover(ctx, token)
	assert.Equal(t, Result{Error: MsgInvalidResetLink}, res)

	require.True(t, f.ctrl.UpdatePassword(ctx, s, "brand new password").Success)
	_, res = f.ctrl.SignIn(ctx, "reader@example.com", "brand new password")
	assert.True(t, res.Success)
	assert.Contains(t, f.events.events, EventPasswordRecovery)
	assert.Contains(t, f.events.events, EventPasswordUpdated)
}

func TestResetPassword_MailerFailureLooksLikeUnknownEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "known@example.com", "long enough", "")
	f.mailer.err = errors.New("sendgrid down")

	known := f.ctrl.ResetPassword(ctx, "known@example.com")
	unknown := f.ctrl.ResetPassword(ctx, "unknown@example.com")

	assert.Equal(t, Result{Success: true}, known)
	assert.Equal(t, unknown, known)
	assert.Equal(t, "known@example.com", f.mailer.to)
	assert.Contains(t, f.logs.String(), "failed to send password reset email")
}

func TestUpdatePassword_RequiresSession(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, Result{Error: MsgNotAuthenticated}, f.ctrl.UpdatePassword(context.Background(), nil, "long enough"))
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	f := newFixture(t)
	extra := &recorder{}
	unsubscribe := f.ctrl.Subscribe(extra)
	f.ctrl.Subscribe(ObserverFunc(func(context.Context, SessionEvent) { panic("observer bug") }))

	f.addUser(t, "a@example.com", "long enough", "")
	unsubscribe()
	f.addUser(t, "b@example.com", "long enough", "")

	assert.Equal(t, []EventKind{EventSignedUp}, extra.events)
	assert.Equal(t, []EventKind{EventSignedUp, EventSignedUp}, f.events.events)
	assert.Contains(t, f.logs.String(), "session observer panic")
}

type trackerFunc func(name string, data map[string]interface{}, ua string)

func (f trackerFunc) TrackEvent(name string, data map[string]interface{}, ua string) {
	f(name, data, ua)
}

func TestAnalyticsObserver(t *testing.T) {
	var gotName string
	var gotData map[string]interface{}
	o := AnalyticsObserver(trackerFunc(func(name string, data map[string]interface{}, _ string) {
		gotName, gotData = name, data
	}))

	o.SessionChanged(context.Background(), SessionEvent{Kind: EventSignedIn, Session: NewSession("u1", "a@example.com", models.TierPro)})
	assert.Equal(t, "auth_signed_in", gotName)
	assert.Equal(t, "pro", gotData["tier"])
}

// Package auth owns accounts, session tokens and the per-request session object.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"kaizen/logging"
	"kaizen/models"
	"kaizen/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	MsgUnavailable        = "Database connection not available"
	MsgInvalidCredentials = "Invalid login credentials"
	MsgUserExists         = "User already registered"
	MsgUnexpected         = "An unexpected error occurred"
	MsgInvalidEmail       = "Unable to validate email address: invalid format"
	MsgWeakPassword       = "Password should be at least 8 characters"
	MsgNotAuthenticated   = "Auth session missing!"
	MsgInvalidResetLink   = "Email link is invalid or has expired"
)

const MinPasswordLength = 8

// Result is returned by every mutating operation. Error is safe to show users.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ok() Result { return Result{Success: true} }

func fail(msg string) Result { return Result{Error: msg} }

type UserRepository interface {
	Create(ctx context.Context, email, passwordHash string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	CreateReset(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	ConsumeReset(ctx context.Context, tokenHash string) (string, error)
}

type SubscriberRepository interface {
	TierByUserID(ctx context.Context, userID string) (models.Tier, error)
	LinkUser(ctx context.Context, email, userID string) error
}

type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type ResetMailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

type Options struct {
	Users       UserRepository
	Subscribers SubscriberRepository
	Tokens      *TokenIssuer
	// Revoker and Mailer are optional.
	Revoker  Revoker
	Mailer   ResetMailer
	ResetTTL time.Duration
	BaseURL  string
	Logger   *logging.Logger
}

// Controller performs account operations and broadcasts session changes.
type Controller struct {
	users       UserRepository
	subscribers SubscriberRepository
	tokens      *TokenIssuer
	revoker     Revoker
	mailer      ResetMailer
	resetTTL    time.Duration
	baseURL     string
	log         *logging.Logger

	mu        sync.RWMutex
	observers map[int]Observer
	nextID    int
}

func NewController(opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = logging.GetGlobalLogger()
	}
	resetTTL := opts.ResetTTL
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	return &Controller{
		users:       opts.Users,
		subscribers: opts.Subscribers,
		tokens:      opts.Tokens,
		revoker:     opts.Revoker,
		mailer:      opts.Mailer,
		resetTTL:    resetTTL,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		log:         log.WithField("component", "auth"),
		observers:   map[int]Observer{},
	}
}

// Subscribe registers an observer and returns a function that removes it.
func (c *Controller) Subscribe(o Observer) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.observers[id] = o
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notify(ctx context.Context, kind EventKind, s *Session) {
	c.mu.RLock()
	observers := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.mu.RUnlock()

	ev := SessionEvent{Kind: kind, Session: s, At: time.Now().UTC()}
	for _, o := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.WithField("panic", r).Error("session observer panic")
				}
			}()
			o.SessionChanged(ctx, ev)
		}()
	}
}

func (c *Controller) available() bool {
	return c.users != nil && c.tokens != nil
}

// backendFailure logs err and returns the message users see for it.
func (c *Controller) backendFailure(op string, err error) Result {
	if errors.Is(err, store.ErrUnavailable) {
		return fail(MsgUnavailable)
	}
	c.log.WithError(err).WithField("op", op).Error("auth backend error")
	return fail(MsgUnexpected)
}

func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

func (c *Controller) SignUp(ctx context.Context, email, password string) Result {
	if !c.available() {
		return fail(MsgUnavailable)
	}
	email = store.NormalizeEmail(email)
	if !validEmail(email) {
		return fail(MsgInvalidEmail)
	}
	if len(password) < MinPasswordLength {
		return fail(MsgWeakPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return c.backendFailure("sign_up", err)
	}

	user, err := c.users.Create(ctx, email, string(hash))
	if errors.Is(err, store.ErrConflict) {
		return fail(MsgUserExists)
	}
	if err != nil {
		return c.backendFailure("sign_up", err)
	}

	if c.subscribers != nil {
		if err := c.subscribers.LinkUser(ctx, user.Email, user.ID); err != nil {
			c.log.WithError(err).WithField("user_id", user.ID).Warn("failed to link subscriber")
		}
	}

	c.notify(ctx, EventSignedUp, &Session{UserID: user.ID, Email: user.Email, tier: models.TierFree})
	return ok()
}

func (c *Controller) SignIn(ctx context.Context, email, password string) (*Session, Result) {
	if !c.available() {
		return nil, fail(MsgUnavailable)
	}

	user, err := c.users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(MsgInvalidCredentials)
	}
	if err != nil {
		return nil, c.backendFailure("sign_in", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fail(MsgInvalidCredentials)
	}

	s, err := c.newSession(ctx, user)
	if err != nil {
		return nil, c.backendFailure("sign_in", err)
	}
	c.notify(ctx, EventSignedIn, s)
	return s, ok()
}

// SignOut revokes the session token. Guests sign out successfully.
func (c *Controller) SignOut(ctx context.Context, s *Session) Result {
	if !s.IsAuthenticated() {
		return ok()
	}
	if c.revoker != nil && s.TokenID != "" {
		if err := c.revoker.Revoke(ctx, s.TokenID, s.ExpiresAt); err != nil {
			return c.backendFailure("sign_out", err)
		}
	}
	c.notify(ctx, EventSignedOut, s)
	return ok()
}

// ResetPassword emails a single-use recovery link. Unknown emails also succeed
// so the response does not reveal which addresses have accounts.
func (c *Controller) ResetPassword(ctx context.Context, email string) Result {
	if !c.available() {
		return fail(MsgUnavailable)
	}
	email = store.NormalizeEmail(email)
	if !validEmail(email) {
		return fail(MsgInvalidEmail)
	}

	user, err := c.users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return ok()
	}
	if err != nil {
		return c.backendFailure("reset_password", err)
	}

	token := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	if err := c.users.CreateReset(ctx, hashToken(token), user.ID, time.Now().Add(c.resetTTL)); err != nil {
		return c.backendFailure("reset_password", err)
	}

	if c.mailer == nil {
		c.log.WithField("user_id", user.ID).Warn("password reset requested but no mailer is configured")
		return ok()
	}
	link := c.baseURL + "/account?reset_token=" + token
	if err := c.mailer.SendPasswordReset(ctx, user.Email, link); err != nil {
		c.log.WithError(err).WithField("user_id", user.ID).Error("failed to send password reset email")
	}
	return ok()
}

// Recover exchanges a reset token for a recovery session.
func (c *Controller) Recover(ctx context.Context, token string) (*Session, Result) {
	if !c.available() {
		return nil, fail(MsgUnavailable)
	}
	if token == "" {
		return nil, fail(MsgInvalidResetLink)
	}

	userID, err := c.users.ConsumeReset(ctx, hashToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(MsgInvalidResetLink)
	}
	if err != nil {
		return nil, c.backendFailure("recover", err)
	}

	user, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return nil, c.backendFailure("recover", err)
	}

	s, err := c.newSession(ctx, user)
	if err != nil {
		return nil, c.backendFailure("recover", err)
	}
	s.Recovery = true
	c.notify(ctx, EventPasswordRecovery, s)
	return s, ok()
}

func (c *Controller) UpdatePassword(ctx context.Context, s *Session, newPassword string) Result {
	if !c.available() {
		return fail(MsgUnavailable)
	}
	if !s.IsAuthenticated() {
		return fail(MsgNotAuthenticated)
	}
	if len(newPassword) < MinPasswordLength {
		return fail(MsgWeakPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return c.backendFailure("update_password", err)
	}
	if err := c.users.UpdatePassword(ctx, s.UserID, string(hash)); err != nil {
		return c.backendFailure("update_password", err)
	}

	c.notify(ctx, EventPasswordUpdated, s)
	return ok()
}

// Resolve turns a session token into a Session, re-reading the tier so changes
// made by billing show on the next request.
func (c *Controller) Resolve(ctx context.Context, token string) (*Session, error) {
	if c.tokens == nil {
		return nil, errors.New("auth not configured")
	}
	claims, err := c.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	if c.revoker != nil && claims.ID != "" {
		revoked, err := c.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			c.log.WithError(err).Warn("session denylist unavailable")
		} else if revoked {
			return nil, errors.New("session revoked")
		}
	}

	s := &Session{
		UserID:  claims.UserID,
		Email:   claims.Email,
		Token:   token,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	s.tier = c.tierFor(ctx, s.UserID)
	return s, nil
}

func (c *Controller) newSession(ctx context.Context, user *models.User) (*Session, error) {
	token, claims, err := c.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &Session{
		UserID:    user.ID,
		Email:     user.Email,
		Token:     token,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
		tier:      c.tierFor(ctx, user.ID),
	}, nil
}

// tierFor reads the subscriber tier and falls back to free on any failure.
func (c *Controller) tierFor(ctx context.Context, userID string) models.Tier {
	if c.subscribers == nil {
		return models.TierFree
	}
	tier, err := c.subscribers.TierByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.WithError(err).WithField("user_id", userID).Warn("tier lookup failed, defaulting to free")
		}
		return models.TierFree
	}
	if !tier.Valid() {
		return models.TierFree
	}
	return tier
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
